package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/spotvec/internal/config"
)

// Environment variables consulted when a provider is built without an
// explicit key.
const (
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// Config selects one provider explicitly.
type Config struct {
	Provider  string
	APIKey    string
	CacheSize int
}

// FromConfig builds the embedder for the loaded settings. An explicit
// provider wins; otherwise the first configured key among Jina, OpenAI and
// Gemini decides, and the local provider is the fallback.
func FromConfig(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	provider := DetectProvider(cfg)
	var key string
	switch provider {
	case ProviderJina:
		key = cfg.JinaAPIKey
	case ProviderOpenAI:
		key = cfg.OpenAIAPIKey
	case ProviderGemini:
		key = cfg.GeminiAPIKey
	}
	return New(ctx, Config{Provider: provider, APIKey: key, CacheSize: 10000})
}

// New creates the named provider.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, "", cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider FromConfig would build.
func DetectProvider(cfg config.EmbeddingConfig) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	switch {
	case cfg.JinaAPIKey != "":
		return ProviderJina
	case cfg.OpenAIAPIKey != "":
		return ProviderOpenAI
	case cfg.GeminiAPIKey != "":
		return ProviderGemini
	}
	return ProviderLocal
}
