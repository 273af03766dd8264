package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIProvider(apiKey, model, baseURL string, dimensions int) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		config.BaseURL = baseURL
	}
	embeddingModel := openai.SmallEmbedding3
	if strings.TrimSpace(model) != "" {
		embeddingModel = openai.EmbeddingModel(model)
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(config),
		model:      embeddingModel,
		dimensions: dimensions,
	}
}

// Embed requests a shortened text-embedding-3 vector so it fits the index
// dimensions.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      p.model,
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: no embedding data")
	}

	raw := resp.Data[0].Embedding
	vector := make([]float64, len(raw))
	for i, value := range raw {
		vector[i] = float64(value)
	}
	return vector, nil
}
