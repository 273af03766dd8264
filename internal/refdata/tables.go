package refdata

// Confidence bands the reference tables must respect.
const (
	MinSectorConfidence    = 0.60
	MaxSectorConfidence    = 0.80
	MinRegulatorConfidence = 0.50
	MaxRegulatorConfidence = 0.70
)

type Company struct {
	Name      string   `yaml:"name" json:"name"`
	Symbol    string   `yaml:"symbol,omitempty" json:"symbol,omitempty"`
	LegalName string   `yaml:"legal_name,omitempty" json:"legal_name,omitempty"`
	Sector    string   `yaml:"sector,omitempty" json:"sector,omitempty"`
	Aliases   []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Tradeable reports whether the company maps to a listed instrument.
func (c Company) Tradeable() bool {
	return c.Symbol != ""
}

type Instrument struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name"`
}

type Sector struct {
	Name        string       `yaml:"name" json:"name"`
	Aliases     []string     `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Confidence  float64      `yaml:"confidence" json:"confidence"`
	Instruments []Instrument `yaml:"instruments,omitempty" json:"instruments,omitempty"`
}

type Regulator struct {
	Name       string   `yaml:"name" json:"name"`
	Aliases    []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Sectors    []string `yaml:"sectors,omitempty" json:"sectors,omitempty"`
	Confidence float64  `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

type Tables struct {
	Companies  []Company   `yaml:"companies" json:"companies"`
	Sectors    []Sector    `yaml:"sectors" json:"sectors"`
	Regulators []Regulator `yaml:"regulators" json:"regulators"`
	Events     []string    `yaml:"events,omitempty" json:"events,omitempty"`
}

// DefaultTables is the built-in NSE reference set.
func DefaultTables() Tables {
	return Tables{
		Companies: []Company{
			{Name: "HDFC Bank", Symbol: "HDFCBANK", LegalName: "HDFC Bank Ltd", Sector: "Banking", Aliases: []string{"hdfc bank", "hdfc"}},
			{Name: "ICICI Bank", Symbol: "ICICIBANK", LegalName: "ICICI Bank Ltd", Sector: "Banking", Aliases: []string{"icici bank", "icici"}},
			{Name: "SBI", Symbol: "SBIN", LegalName: "State Bank of India", Sector: "Banking", Aliases: []string{"sbi", "state bank of india", "state bank"}},
			{Name: "Axis Bank", Symbol: "AXISBANK", LegalName: "Axis Bank Ltd", Sector: "Banking", Aliases: []string{"axis bank"}},
			{Name: "Kotak Mahindra Bank", Symbol: "KOTAKBANK", LegalName: "Kotak Mahindra Bank", Sector: "Banking", Aliases: []string{"kotak mahindra bank", "kotak mahindra", "kotak"}},
			{Name: "TCS", Symbol: "TCS", LegalName: "Tata Consultancy Services", Sector: "Information Technology", Aliases: []string{"tcs", "tata consultancy services", "tata consultancy"}},
			{Name: "Infosys", Symbol: "INFY", LegalName: "Infosys Ltd", Sector: "Information Technology", Aliases: []string{"infosys"}},
			{Name: "Wipro", Symbol: "WIPRO", LegalName: "Wipro Ltd", Sector: "Information Technology", Aliases: []string{"wipro"}},
			{Name: "Tech Mahindra", Symbol: "TECHM", LegalName: "Tech Mahindra Ltd", Sector: "Information Technology", Aliases: []string{"tech mahindra"}},
			{Name: "HCL Technologies", Symbol: "HCLTECH", LegalName: "HCL Technologies", Sector: "Information Technology", Aliases: []string{"hcl technologies", "hcl tech", "hcl"}},
			{Name: "Persistent Systems", Symbol: "PERSISTENT", LegalName: "Persistent Systems", Sector: "Information Technology", Aliases: []string{"persistent systems"}},
			{Name: "Reliance Industries", Symbol: "RELIANCE", LegalName: "Reliance Industries", Sector: "Telecom", Aliases: []string{"reliance industries", "reliance jio", "reliance"}},
			{Name: "Bharti Airtel", Symbol: "BHARTIARTL", LegalName: "Bharti Airtel", Sector: "Telecom", Aliases: []string{"bharti airtel", "airtel"}},
			{Name: "Tejas Networks", Symbol: "TEJASNET", LegalName: "Tejas Networks", Sector: "Telecom", Aliases: []string{"tejas networks"}},
			{Name: "Bajaj Finance", Symbol: "BAJFINANCE", LegalName: "Bajaj Finance Ltd", Sector: "NBFC", Aliases: []string{"bajaj finance"}},
			{Name: "Bajaj Auto", Symbol: "BAJAJ-AUTO", LegalName: "Bajaj Auto Ltd", Sector: "Automobile", Aliases: []string{"bajaj auto"}},
			{Name: "Maruti Suzuki", Symbol: "MARUTI", LegalName: "Maruti Suzuki India", Sector: "Automobile", Aliases: []string{"maruti suzuki", "maruti"}},
			{Name: "Tata Motors", Symbol: "TATAMOTORS", LegalName: "Tata Motors Ltd", Sector: "Automobile", Aliases: []string{"tata motors"}},
			{Name: "Mahindra & Mahindra", Symbol: "M&M", LegalName: "Mahindra & Mahindra", Sector: "Automobile", Aliases: []string{"mahindra & mahindra", "mahindra and mahindra", "m&m", "mahindra"}},
			{Name: "HDFC Life", Symbol: "HDFCLIFE", LegalName: "HDFC Life Insurance", Sector: "Insurance", Aliases: []string{"hdfc life insurance", "hdfc life"}},
			{Name: "ITC", Symbol: "ITC", LegalName: "ITC Ltd", Sector: "FMCG", Aliases: []string{"itc"}},
			{Name: "Hindustan Unilever", Symbol: "HINDUNILVR", LegalName: "Hindustan Unilever", Sector: "FMCG", Aliases: []string{"hindustan unilever", "hul"}},
			{Name: "Britannia", Symbol: "BRITANNIA", LegalName: "Britannia Industries", Sector: "FMCG", Aliases: []string{"britannia industries", "britannia"}},
			{Name: "Nestle India", Symbol: "NESTLEIND", LegalName: "Nestle India", Sector: "FMCG", Aliases: []string{"nestle india", "nestle"}},
			{Name: "Sun Pharma", Symbol: "SUNPHARMA", LegalName: "Sun Pharmaceutical Industries", Sector: "Pharmaceuticals", Aliases: []string{"sun pharmaceutical", "sun pharma"}},
			{Name: "Dr Reddy's", Symbol: "DRREDDY", LegalName: "Dr. Reddy's Laboratories", Sector: "Pharmaceuticals", Aliases: []string{"dr reddy's", "dr reddys", "dr reddy"}},
			{Name: "Cipla", Symbol: "CIPLA", LegalName: "Cipla Ltd", Sector: "Pharmaceuticals", Aliases: []string{"cipla"}},
			{Name: "IndiGo", Symbol: "INDIGO", LegalName: "InterGlobe Aviation", Sector: "Aviation", Aliases: []string{"interglobe aviation", "indigo"}},
			{Name: "Patel Engineering", Symbol: "PATELENG", LegalName: "Patel Engineering", Sector: "Infrastructure", Aliases: []string{"patel engineering"}},
			{Name: "Air India", Sector: "Aviation", Aliases: []string{"air india"}},
			{Name: "Aditya Birla", Aliases: []string{"aditya birla"}},
		},
		Sectors: []Sector{
			{
				Name: "Banking", Confidence: 0.75,
				Aliases: []string{"banking", "banks", "bank stocks"},
				Instruments: []Instrument{
					{Symbol: "HDFCBANK", Name: "HDFC Bank"},
					{Symbol: "ICICIBANK", Name: "ICICI Bank"},
					{Symbol: "SBIN", Name: "State Bank of India"},
					{Symbol: "AXISBANK", Name: "Axis Bank"},
					{Symbol: "KOTAKBANK", Name: "Kotak Mahindra Bank"},
				},
			},
			{
				Name: "Financial Services", Confidence: 0.70,
				Aliases: []string{"financial services"},
				Instruments: []Instrument{
					{Symbol: "HDFCBANK", Name: "HDFC Bank"},
					{Symbol: "BAJFINANCE", Name: "Bajaj Finance"},
					{Symbol: "HDFCLIFE", Name: "HDFC Life"},
				},
			},
			{
				Name: "Information Technology", Confidence: 0.75,
				Aliases: []string{"information technology", "it services", "it sector", "software"},
				Instruments: []Instrument{
					{Symbol: "TCS", Name: "Tata Consultancy Services"},
					{Symbol: "INFY", Name: "Infosys"},
					{Symbol: "WIPRO", Name: "Wipro"},
					{Symbol: "TECHM", Name: "Tech Mahindra"},
					{Symbol: "HCLTECH", Name: "HCL Technologies"},
				},
			},
			{
				Name: "Automobile", Confidence: 0.75,
				Aliases: []string{"automobile", "auto", "ev", "electric vehicle"},
				Instruments: []Instrument{
					{Symbol: "MARUTI", Name: "Maruti Suzuki"},
					{Symbol: "TATAMOTORS", Name: "Tata Motors"},
					{Symbol: "M&M", Name: "Mahindra & Mahindra"},
					{Symbol: "BAJAJ-AUTO", Name: "Bajaj Auto"},
				},
			},
			{
				Name: "NBFC", Confidence: 0.80,
				Aliases: []string{"nbfc"},
				Instruments: []Instrument{
					{Symbol: "BAJFINANCE", Name: "Bajaj Finance"},
				},
			},
			{
				Name: "Insurance", Confidence: 0.75,
				Aliases: []string{"insurance"},
				Instruments: []Instrument{
					{Symbol: "HDFCLIFE", Name: "HDFC Life"},
				},
			},
			{
				Name: "Telecom", Confidence: 0.70,
				Aliases: []string{"telecom", "telecommunications"},
				Instruments: []Instrument{
					{Symbol: "BHARTIARTL", Name: "Bharti Airtel"},
					{Symbol: "RELIANCE", Name: "Reliance Industries"},
					{Symbol: "TEJASNET", Name: "Tejas Networks"},
				},
			},
			{
				Name: "FMCG", Confidence: 0.70,
				Aliases: []string{"fmcg", "consumer goods"},
				Instruments: []Instrument{
					{Symbol: "ITC", Name: "ITC"},
					{Symbol: "HINDUNILVR", Name: "Hindustan Unilever"},
					{Symbol: "BRITANNIA", Name: "Britannia Industries"},
				},
			},
			{
				Name: "Pharmaceuticals", Confidence: 0.65,
				Aliases: []string{"pharmaceuticals", "pharma", "healthcare"},
				Instruments: []Instrument{
					{Symbol: "SUNPHARMA", Name: "Sun Pharma"},
					{Symbol: "DRREDDY", Name: "Dr. Reddy's Laboratories"},
					{Symbol: "CIPLA", Name: "Cipla"},
				},
			},
			{
				Name: "Aviation", Confidence: 0.65,
				Aliases: []string{"aviation", "airlines"},
				Instruments: []Instrument{
					{Symbol: "INDIGO", Name: "InterGlobe Aviation"},
				},
			},
			{
				Name: "Infrastructure", Confidence: 0.60,
				Aliases: []string{"infrastructure", "real estate"},
				Instruments: []Instrument{
					{Symbol: "PATELENG", Name: "Patel Engineering"},
				},
			},
		},
		Regulators: []Regulator{
			{Name: "RBI", Aliases: []string{"rbi", "reserve bank of india", "reserve bank"}, Sectors: []string{"Banking"}, Confidence: 0.65},
			{Name: "SEBI", Aliases: []string{"sebi", "securities and exchange board"}, Sectors: []string{"Financial Services"}, Confidence: 0.55},
			{Name: "IRDAI", Aliases: []string{"irdai", "insurance regulatory"}, Sectors: []string{"Insurance"}, Confidence: 0.60},
			{Name: "CCI", Aliases: []string{"cci", "competition commission of india", "competition commission"}},
			{Name: "TRAI", Aliases: []string{"trai", "telecom regulatory authority of india", "telecom regulator"}},
			{Name: "DGCA", Aliases: []string{"dgca", "directorate general of civil aviation"}},
			{Name: "PFRDA", Aliases: []string{"pfrda", "pension fund regulatory and development authority", "pension regulator"}},
			{Name: "Government", Aliases: []string{"government"}},
			{Name: "Ministry", Aliases: []string{"ministry"}},
		},
		Events: []string{
			"dividend", "buyback", "merger", "acquisition", "rate hike", "rate cut",
			"ipo", "quarterly results", "earnings", "stake sale", "layoffs", "penalty",
		},
	}
}
