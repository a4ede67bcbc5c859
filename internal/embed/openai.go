package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openaiDimensions maps OpenAI embedding models to their dimensions.
var openaiDimensions = map[openai.EmbeddingModel]int{
	openai.SmallEmbedding3: 1536,
	openai.LargeEmbedding3: 3072,
	openai.AdaEmbeddingV2:  1536,
}

// OpenAIConfig holds configuration for the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: text-embedding-3-small
	BaseURL string // Optional custom endpoint
}

// OpenAIProvider generates embeddings via the OpenAI embeddings API.
type OpenAIProvider struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", ErrInvalidConfig)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.SmallEmbedding3
	}
	dimension, ok := openaiDimensions[model]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported embedding model %q", ErrInvalidConfig, cfg.Model)
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		dimension: dimension,
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts in one API call.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a single text.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	embeddings, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimension returns the embedding dimension of the configured model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}
