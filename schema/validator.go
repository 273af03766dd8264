package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed article.schema.json
var articleSchemaJSON string

// ArticleSubmission is an article as submitted for processing, before any
// pipeline stage has touched it.
type ArticleSubmission struct {
	ID            string  `json:"id,omitempty"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Source        string  `json:"source"`
	URL           *string `json:"url,omitempty"`
	PublishedDate *string `json:"published_date,omitempty"`
	Author        *string `json:"author,omitempty"`
	Language      *string `json:"language,omitempty"`
}

// PublishedAt parses published_date. ok is false when the field is absent.
func (s ArticleSubmission) PublishedAt() (time.Time, bool, error) {
	if s.PublishedDate == nil || strings.TrimSpace(*s.PublishedDate) == "" {
		return time.Time{}, false, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*s.PublishedDate))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("published_date must be RFC3339: %w", err)
	}
	return parsed.UTC(), true, nil
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateArticlePayload decodes one submission, checks it against the
// embedded JSON schema and applies the semantic rules the schema cannot
// express.
func ValidateArticlePayload(payload json.RawMessage) (*ArticleSubmission, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var item ArticleSubmission
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&item); err != nil {
		return nil, err
	}

	return &item, nil
}

// SplitBatch accepts either a single submission object or an array of them and
// returns the raw element payloads in order.
func SplitBatch(payload []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode article array: %w", err)
	}
	return items, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("article.schema.json", strings.NewReader(articleSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("article.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(item *ArticleSubmission) error {
	if item == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(item.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if item.ID != "" && strings.TrimSpace(item.ID) != item.ID {
		return fmt.Errorf("id must not carry surrounding whitespace")
	}

	if item.URL != nil {
		if err := validateURI("url", *item.URL); err != nil {
			return err
		}
	}
	if strings.TrimSpace(item.Content) == "" && item.URL == nil {
		return fmt.Errorf("content must not be empty when url is absent")
	}
	if _, _, err := item.PublishedAt(); err != nil {
		return err
	}
	if item.Author != nil && strings.TrimSpace(*item.Author) == "" {
		return fmt.Errorf("author must not be empty when present")
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", fieldName)
	}
	return nil
}
