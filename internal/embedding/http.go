package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	DefaultEndpoint       = "http://127.0.0.1:8844/embed"
	DefaultModelName      = "all-MiniLM-L6-v2"
	DefaultMaxLength      = 512
	DefaultRequestTimeout = 10 * time.Second
)

type HTTPOptions struct {
	Endpoint       string
	ModelName      string
	MaxLength      int
	RequestTimeout time.Duration
	Client         *http.Client
}

// HTTPProvider calls a sentence-embedding service that speaks either the
// {"texts": [...]} /embed protocol or the OpenAI-style /v1/embeddings protocol.
type HTTPProvider struct {
	opts HTTPOptions
}

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	Model     string   `json:"model,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func NewHTTPProvider(options HTTPOptions) *HTTPProvider {
	return &HTTPProvider{opts: normalizeHTTPOptions(options)}
}

func normalizeHTTPOptions(opts HTTPOptions) HTTPOptions {
	normalized := opts
	normalized.Endpoint = normalizeEndpoint(normalized.Endpoint)
	if strings.TrimSpace(normalized.ModelName) == "" {
		normalized.ModelName = DefaultModelName
	}
	if normalized.MaxLength <= 0 {
		normalized.MaxLength = DefaultMaxLength
	}
	if normalized.RequestTimeout <= 0 {
		normalized.RequestTimeout = DefaultRequestTimeout
	}
	if normalized.Client == nil {
		normalized.Client = http.DefaultClient
	}
	return normalized
}

func (p *HTTPProvider) Endpoint() string {
	return p.opts.Endpoint
}

func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding response count mismatch: requested=1 returned=%d", len(vectors))
	}
	return vectors[0], nil
}

func (p *HTTPProvider) request(ctx context.Context, texts []string) ([][]float64, error) {
	payload := embedRequest{
		Texts:     texts,
		MaxLength: p.opts.MaxLength,
	}

	parsedEndpoint, err := url.Parse(p.opts.Endpoint)
	if err == nil && strings.HasSuffix(parsedEndpoint.Path, "/v1/embeddings") {
		payload = embedRequest{
			Input: texts,
			Model: p.opts.ModelName,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, p.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response missing vectors")
	}
	return vectors, nil
}

func normalizeEndpoint(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultEndpoint
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = "/embed"
	}
	return parsed.String()
}
