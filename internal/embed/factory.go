package embed

import (
	"fmt"
	"strings"

	"github.com/msg43/winnow/internal/model"
)

// New creates an Embedder based on configuration.
func New(cfg model.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})

	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})

	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: fastembed, openai)", ErrInvalidConfig, cfg.Provider)
	}
}
