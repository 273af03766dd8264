package extract

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/finscoop/internal/llm"
	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/refdata"
)

const (
	DefaultLLMTimeout = 8 * time.Second
	promptBodyRunes   = 500
)

//go:embed llm_entities.schema.json
var llmEntitiesSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

const promptTemplate = `Extract financial entities from this news article. Return ONLY a JSON object, no other text.

Article Title: %s
Article Content: %s

Extract these entity types:
1. COMPANY - Company names (HDFC Bank, Infosys, etc.)
2. SECTOR - Industry sectors (Banking, IT, Auto, etc.)
3. REGULATOR - Regulatory bodies (RBI, SEBI, etc.)
4. PERSON - People mentioned (CEOs, officials, etc.)
5. EVENT - Significant events (dividend, merger, rate hike, etc.)

Each list item is either a name or {"name": "...", "confidence": 0.0-1.0}.
Return JSON in this exact format:
{
  "companies": ["Company Name 1", "Company Name 2"],
  "sectors": ["Sector 1"],
  "regulators": ["Regulator 1"],
  "people": ["Person Name"],
  "events": ["Event 1"]
}`

// LLMExtractor asks a language model for entities. Any failure is reported as
// an outcome, never as a panic or error return.
type LLMExtractor struct {
	client  llm.Client
	catalog *refdata.Catalog
	timeout time.Duration
}

func NewLLMExtractor(client llm.Client, catalog *refdata.Catalog, timeout time.Duration) *LLMExtractor {
	if catalog == nil {
		catalog = refdata.Default()
	}
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLMExtractor{client: client, catalog: catalog, timeout: timeout}
}

func (x *LLMExtractor) Source() news.ExtractionSource {
	return news.SourceLLM
}

func (x *LLMExtractor) Extract(ctx context.Context, title, body string) Outcome {
	if x == nil || x.client == nil {
		return Failed(OutcomeUnavailable, fmt.Errorf("%w: no llm client configured", news.ErrExtractionUnavailable))
	}

	callCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := x.client.Generate(callCtx, BuildPrompt(title, body))
		done <- reply{text: text, err: err}
	}()

	// The select bounds the wait even when a client ignores its context.
	var got reply
	select {
	case got = <-done:
	case <-callCtx.Done():
		return Failed(OutcomeTimedOut, fmt.Errorf("%w: llm call: %w", news.ErrExtractionUnavailable, callCtx.Err()))
	}

	if got.err != nil {
		if errors.Is(got.err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Failed(OutcomeTimedOut, fmt.Errorf("%w: llm call: %w", news.ErrExtractionUnavailable, got.err))
		}
		return Failed(OutcomeUnavailable, fmt.Errorf("%w: llm call: %w", news.ErrExtractionUnavailable, got.err))
	}

	entities, err := x.parse(got.text)
	if err != nil {
		return Failed(OutcomeMalformed, fmt.Errorf("%w: %w", news.ErrExtractionUnavailable, err))
	}
	return Ok(news.MergeEntities(entities))
}

func BuildPrompt(title, body string) string {
	body = strings.TrimSpace(body)
	if runes := []rune(body); len(runes) > promptBodyRunes {
		body = string(runes[:promptBodyRunes])
	}
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(title), body)
}

type llmItem struct {
	Name       string
	Confidence *float64
}

func (i *llmItem) UnmarshalJSON(raw []byte) error {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		i.Name = name
		return nil
	}
	var object struct {
		Name       string   `json:"name"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return err
	}
	i.Name = object.Name
	i.Confidence = object.Confidence
	return nil
}

type llmResponse struct {
	Companies  []llmItem `json:"companies"`
	Sectors    []llmItem `json:"sectors"`
	Regulators []llmItem `json:"regulators"`
	People     []llmItem `json:"people"`
	Events     []llmItem `json:"events"`
}

func (x *LLMExtractor) parse(text string) ([]news.Entity, error) {
	cleaned := cleanJSONResponse(text)
	value, err := decodeStrictJSON([]byte(cleaned))
	if err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load llm response schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("llm response schema validation failed: %w", err)
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal llm response: %w", err)
	}

	entities := make([]news.Entity, 0)
	add := func(items []llmItem, kind news.EntityType) {
		for _, item := range items {
			name := strings.TrimSpace(item.Name)
			if name == "" {
				continue
			}
			entities = append(entities, news.Entity{
				Name:       x.canonicalName(name, kind),
				Type:       kind,
				Source:     news.SourceLLM,
				Confidence: item.Confidence,
			})
		}
	}
	add(parsed.Companies, news.EntityCompany)
	add(parsed.Sectors, news.EntitySector)
	add(parsed.Regulators, news.EntityRegulator)
	add(parsed.People, news.EntityPerson)
	add(parsed.Events, news.EntityEvent)
	return entities, nil
}

// canonicalName maps exact alias hits onto the table name so LLM and rule
// entities share keys. Partial hits keep the model's wording.
func (x *LLMExtractor) canonicalName(name string, kind news.EntityType) string {
	switch kind {
	case news.EntityCompany:
		if company, match := x.catalog.Company(name); match == refdata.ExactMatch {
			return company.Name
		}
	case news.EntitySector:
		if sector, ok := x.catalog.Sector(name); ok {
			return sector.Name
		}
	case news.EntityRegulator:
		if regulator, ok := x.catalog.Regulator(name); ok {
			return regulator.Name
		}
	}
	return name
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("llm_entities.schema.json", strings.NewReader(llmEntitiesSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("llm_entities.schema.json")
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
		return nil, fmt.Errorf("response is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("response contains trailing content")
	}
	return value, nil
}
