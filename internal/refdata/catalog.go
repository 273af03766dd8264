package refdata

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"horse.fit/finscoop/internal/news"
)

// MatchKind tells how a name resolved against the alias tables.
type MatchKind int

const (
	NoMatch MatchKind = iota
	ExactMatch
	PartialMatch
)

// Mention is one span of text resolved to a reference entity.
type Mention struct {
	Name  string
	Type  news.EntityType
	Alias string
	Start int
	End   int
}

type aliasEntry struct {
	alias string
	kind  news.EntityType
	index int
}

// Catalog is an immutable, indexed view of the reference tables. It is safe for
// concurrent use.
type Catalog struct {
	tables Tables

	companyAlias   map[string]int
	sectorAlias    map[string]int
	regulatorAlias map[string]int
	eventAlias     map[string]int
	sectorByName   map[string]int
	symbols        map[string]string
	sectorSymbols  map[string]map[string]struct{}

	// longest alias first, ties in table order
	aliases []aliasEntry
}

var defaultCatalog = mustBuild(DefaultTables())

// Default returns the catalog built from the built-in tables.
func Default() *Catalog {
	return defaultCatalog
}

func mustBuild(tables Tables) *Catalog {
	catalog, err := Build(tables)
	if err != nil {
		panic(fmt.Sprintf("refdata: built-in tables are invalid: %v", err))
	}
	return catalog
}

// Load reads reference tables from a YAML file. An empty path yields Default().
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data %s: %w", path, err)
	}
	var tables Tables
	if err := yaml.Unmarshal(raw, &tables); err != nil {
		return nil, fmt.Errorf("decode reference data %s: %w", path, err)
	}
	catalog, err := Build(tables)
	if err != nil {
		return nil, fmt.Errorf("reference data %s: %w", path, err)
	}
	return catalog, nil
}

// Build validates tables and indexes them.
func Build(tables Tables) (*Catalog, error) {
	c := &Catalog{
		tables:         tables,
		companyAlias:   make(map[string]int),
		sectorAlias:    make(map[string]int),
		regulatorAlias: make(map[string]int),
		eventAlias:     make(map[string]int),
		sectorByName:   make(map[string]int),
		symbols:        make(map[string]string),
		sectorSymbols:  make(map[string]map[string]struct{}),
	}

	for i, sector := range tables.Sectors {
		name := normalizeName(sector.Name)
		if name == "" {
			return nil, fmt.Errorf("sector %d has no name", i)
		}
		if sector.Confidence < MinSectorConfidence || sector.Confidence > MaxSectorConfidence {
			return nil, fmt.Errorf("sector %q confidence %.2f outside [%.2f, %.2f]", sector.Name, sector.Confidence, MinSectorConfidence, MaxSectorConfidence)
		}
		if _, exists := c.sectorByName[name]; exists {
			return nil, fmt.Errorf("sector %q defined twice", sector.Name)
		}
		c.sectorByName[name] = i
		members := make(map[string]struct{}, len(sector.Instruments))
		for _, instrument := range sector.Instruments {
			symbol := strings.TrimSpace(instrument.Symbol)
			if symbol == "" {
				return nil, fmt.Errorf("sector %q has an instrument without symbol", sector.Name)
			}
			members[symbol] = struct{}{}
			if _, known := c.symbols[symbol]; !known {
				c.symbols[symbol] = instrument.Name
			}
		}
		c.sectorSymbols[sector.Name] = members
		if err := c.addAliases(c.sectorAlias, news.EntitySector, i, sector.Name, sector.Aliases); err != nil {
			return nil, err
		}
	}

	for i, company := range tables.Companies {
		if normalizeName(company.Name) == "" {
			return nil, fmt.Errorf("company %d has no name", i)
		}
		if company.Sector != "" {
			if _, ok := c.sectorByName[normalizeName(company.Sector)]; !ok {
				return nil, fmt.Errorf("company %q references unknown sector %q", company.Name, company.Sector)
			}
		}
		if company.Symbol != "" {
			c.symbols[company.Symbol] = company.Name
		}
		if err := c.addAliases(c.companyAlias, news.EntityCompany, i, company.Name, company.Aliases); err != nil {
			return nil, err
		}
	}

	for i, regulator := range tables.Regulators {
		if normalizeName(regulator.Name) == "" {
			return nil, fmt.Errorf("regulator %d has no name", i)
		}
		if len(regulator.Sectors) > 0 &&
			(regulator.Confidence < MinRegulatorConfidence || regulator.Confidence > MaxRegulatorConfidence) {
			return nil, fmt.Errorf("regulator %q confidence %.2f outside [%.2f, %.2f]", regulator.Name, regulator.Confidence, MinRegulatorConfidence, MaxRegulatorConfidence)
		}
		for _, sector := range regulator.Sectors {
			if _, ok := c.sectorByName[normalizeName(sector)]; !ok {
				return nil, fmt.Errorf("regulator %q references unknown sector %q", regulator.Name, sector)
			}
		}
		if err := c.addAliases(c.regulatorAlias, news.EntityRegulator, i, regulator.Name, regulator.Aliases); err != nil {
			return nil, err
		}
	}

	for i, event := range tables.Events {
		if err := c.addAliases(c.eventAlias, news.EntityEvent, i, event, nil); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(c.aliases, func(i, j int) bool {
		return len(c.aliases[i].alias) > len(c.aliases[j].alias)
	})
	return c, nil
}

func (c *Catalog) addAliases(target map[string]int, kind news.EntityType, index int, name string, aliases []string) error {
	all := append([]string{name}, aliases...)
	for _, raw := range all {
		alias := normalizeName(raw)
		if alias == "" {
			continue
		}
		if existing, ok := target[alias]; ok {
			if existing == index {
				continue
			}
			return fmt.Errorf("%s alias %q is ambiguous", kind, raw)
		}
		target[alias] = index
		c.aliases = append(c.aliases, aliasEntry{alias: alias, kind: kind, index: index})
	}
	return nil
}

func (c *Catalog) Tables() Tables {
	return c.tables
}

// Company resolves an entity name to a company. An alias equal to the whole
// name is an exact match; an alias found inside the name as whole words is a
// partial match.
func (c *Catalog) Company(name string) (Company, MatchKind) {
	idx, kind := resolve(c.companyAlias, name)
	if kind == NoMatch {
		return Company{}, NoMatch
	}
	return c.tables.Companies[idx], kind
}

func (c *Catalog) Sector(name string) (Sector, bool) {
	idx, kind := resolve(c.sectorAlias, name)
	if kind == NoMatch {
		return Sector{}, false
	}
	return c.tables.Sectors[idx], true
}

func (c *Catalog) Regulator(name string) (Regulator, bool) {
	idx, kind := resolve(c.regulatorAlias, name)
	if kind == NoMatch {
		return Regulator{}, false
	}
	return c.tables.Regulators[idx], true
}

// SectorNamed returns a sector by its canonical name only.
func (c *Catalog) SectorNamed(name string) (Sector, bool) {
	idx, ok := c.sectorByName[normalizeName(name)]
	if !ok {
		return Sector{}, false
	}
	return c.tables.Sectors[idx], true
}

// SectorHasSymbol reports whether the canonical sector lists symbol.
func (c *Catalog) SectorHasSymbol(sector, symbol string) bool {
	members, ok := c.sectorSymbols[sector]
	if !ok {
		return false
	}
	_, ok = members[symbol]
	return ok
}

// InstrumentName returns the display name for a known symbol.
func (c *Catalog) InstrumentName(symbol string) (string, bool) {
	name, ok := c.symbols[symbol]
	return name, ok
}

// Scan finds reference entity mentions in text. Matching is case-insensitive on
// whole words; longer aliases consume their span first so "Tech Mahindra" is
// never also read as "Mahindra". Mentions are returned in text order.
func (c *Catalog) Scan(text string) []Mention {
	lowered := strings.ToLower(text)
	consumed := make([]bool, len(lowered))
	mentions := make([]Mention, 0)

	for _, entry := range c.aliases {
		from := 0
		for from < len(lowered) {
			at := strings.Index(lowered[from:], entry.alias)
			if at < 0 {
				break
			}
			start := from + at
			end := start + len(entry.alias)
			from = start + 1
			if !wordBoundary(lowered, start, end) || spanTaken(consumed, start, end) {
				continue
			}
			for i := start; i < end; i++ {
				consumed[i] = true
			}
			mentions = append(mentions, Mention{
				Name:  c.canonical(entry),
				Type:  entry.kind,
				Alias: entry.alias,
				Start: start,
				End:   end,
			})
			from = end
		}
	}

	sort.SliceStable(mentions, func(i, j int) bool {
		return mentions[i].Start < mentions[j].Start
	})
	return mentions
}

func (c *Catalog) canonical(entry aliasEntry) string {
	switch entry.kind {
	case news.EntityCompany:
		return c.tables.Companies[entry.index].Name
	case news.EntitySector:
		return c.tables.Sectors[entry.index].Name
	case news.EntityEvent:
		return c.tables.Events[entry.index]
	default:
		return c.tables.Regulators[entry.index].Name
	}
}

func resolve(aliases map[string]int, name string) (int, MatchKind) {
	normalized := normalizeName(name)
	if normalized == "" {
		return 0, NoMatch
	}
	if idx, ok := aliases[normalized]; ok {
		return idx, ExactMatch
	}

	bestLen := 0
	bestIdx := 0
	for alias, idx := range aliases {
		if len(alias) < bestLen || len(alias) > len(normalized) {
			continue
		}
		if len(alias) == bestLen && idx >= bestIdx {
			continue
		}
		if containsWord(normalized, alias) {
			bestLen = len(alias)
			bestIdx = idx
		}
	}
	if bestLen == 0 {
		return 0, NoMatch
	}
	return bestIdx, PartialMatch
}

func containsWord(text, word string) bool {
	from := 0
	for from < len(text) {
		at := strings.Index(text[from:], word)
		if at < 0 {
			return false
		}
		start := from + at
		if wordBoundary(text, start, start+len(word)) {
			return true
		}
		from = start + 1
	}
	return false
}

func wordBoundary(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	if end < len(text) && isWordByte(text[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	if b >= 0x80 {
		return true
	}
	r := rune(b)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func spanTaken(consumed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if consumed[i] {
			return true
		}
	}
	return false
}

var legalSuffixes = []string{" limited", " ltd.", " ltd", " inc.", " inc", " corp.", " corp", " plc"}

func normalizeName(name string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			normalized = strings.TrimSpace(strings.TrimSuffix(normalized, suffix))
			break
		}
	}
	return normalized
}
