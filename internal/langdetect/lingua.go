package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Languages the feed is expected to carry. Restricting the detector keeps
// short headlines from being read as an unrelated European language.
var supported = []lingua.Language{
	lingua.English,
	lingua.Hindi,
	lingua.Marathi,
	lingua.Gujarati,
	lingua.Bengali,
	lingua.Tamil,
	lingua.Telugu,
	lingua.Punjabi,
	lingua.Urdu,
}

const minLetters = 6

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns the two-letter code of the text's language, or "" when
// the sample is too short or the detector is not confident.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minLetters {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// Resolve prefers a submitted language tag and falls back to detection over
// the text.
func Resolve(submitted string, text string) string {
	if code := NormalizeCode(submitted); code != "" {
		return code
	}
	return DetectISO6391(text)
}

// NormalizeCode returns the primary subtag of a language tag ("en" from
// "en_IN"), or "" when the tag is blank or malformed.
func NormalizeCode(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	primary := trimmed
	if dash := strings.IndexByte(trimmed, '-'); dash >= 0 {
		primary = trimmed[:dash]
	}
	if len(primary) < 2 || len(primary) > 3 {
		return ""
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(supported...).
			Build()
	})
	return detector
}
