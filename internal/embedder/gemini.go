package embedder

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiProvider embeds text with the Gemini embedding models.
type GeminiProvider struct {
	client *genai.Client
	model  string
	cache  *Cache
	retry  RetryConfig
}

// NewGeminiProvider creates a Gemini embedder. An empty apiKey falls back to
// GEMINI_API_KEY. baseURL is only set by tests.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL string, cache *Cache) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvGeminiAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvGeminiAPIKey)
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: DefaultGeminiModel, cache: cache, retry: DefaultRetryConfig()}, nil
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := g.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (g *GeminiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	embeddings, err := cachedBatch(g.cache, req.Texts, func(misses []string) ([]*Embedding, error) {
		out, err := retryWithBackoff(ctx, g.retry, func() ([]*Embedding, error) {
			return g.embed(ctx, misses, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, g.retry.MaxRetries, err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{Embeddings: embeddings, Provider: ProviderGemini, Model: model}, nil
}

func (g *GeminiProvider) embed(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	embeddings := make([]*Embedding, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		embeddings[i] = &Embedding{
			Vector:    e.Values,
			Dimension: len(e.Values),
			Provider:  ProviderGemini,
			Model:     model,
		}
	}
	return embeddings, nil
}

func (g *GeminiProvider) Dimension() int { return GeminiDimension }

func (g *GeminiProvider) Provider() string { return ProviderGemini }

func (g *GeminiProvider) Model() string { return g.model }

func (g *GeminiProvider) Close() error { return nil }
