package query

import (
	"strings"
	"unicode"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/refdata"
)

const minKeywordLength = 4

var stopwords = map[string]struct{}{
	"news":   {},
	"update": {},
	"latest": {},
	"recent": {},
	"about":  {},
	"with":   {},
	"from":   {},
	"what":   {},
	"show":   {},
	"today":  {},
}

// Intent is a parsed query. NamedSectors always count toward scoring;
// ImpliedSectors (a company's sector, a regulator's sectors) count only when
// sector expansion is requested.
type Intent struct {
	Symbols        []string `json:"symbols"`
	NamedSectors   []string `json:"named_sectors"`
	ImpliedSectors []string `json:"implied_sectors"`
	Keywords       []string `json:"keywords"`
}

// Parse resolves query text against the reference tables. Spans claimed by a
// company, sector or regulator are removed before keywords are collected.
func Parse(catalog *refdata.Catalog, text string) Intent {
	intent := Intent{
		Symbols:        []string{},
		NamedSectors:   []string{},
		ImpliedSectors: []string{},
		Keywords:       []string{},
	}
	lowered := strings.ToLower(text)
	residual := []byte(lowered)

	for _, mention := range catalog.Scan(lowered) {
		switch mention.Type {
		case news.EntityCompany:
			company, match := catalog.Company(mention.Name)
			if match == refdata.NoMatch {
				continue
			}
			if company.Tradeable() {
				intent.Symbols = appendUnique(intent.Symbols, company.Symbol)
			}
			if company.Sector != "" {
				intent.ImpliedSectors = appendUnique(intent.ImpliedSectors, company.Sector)
			}
		case news.EntitySector:
			intent.NamedSectors = appendUnique(intent.NamedSectors, mention.Name)
		case news.EntityRegulator:
			if regulator, ok := catalog.Regulator(mention.Name); ok {
				for _, sector := range regulator.Sectors {
					intent.ImpliedSectors = appendUnique(intent.ImpliedSectors, sector)
				}
			}
		default:
			// events stay in the residual text as keywords
			continue
		}
		for i := mention.Start; i < mention.End && i < len(residual); i++ {
			residual[i] = ' '
		}
	}

	for _, token := range strings.FieldsFunc(string(residual), isSeparator) {
		if len([]rune(token)) < minKeywordLength {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		intent.Keywords = appendUnique(intent.Keywords, token)
	}
	return intent
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&' && r != '-'
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

// containsKeyword reports whether keyword starts a word in text. Both are
// expected lower-cased.
func containsKeyword(text, keyword string) bool {
	from := 0
	for from < len(text) {
		at := strings.Index(text[from:], keyword)
		if at < 0 {
			return false
		}
		start := from + at
		if start == 0 || isSeparator(rune(text[start-1])) {
			return true
		}
		from = start + 1
	}
	return false
}
