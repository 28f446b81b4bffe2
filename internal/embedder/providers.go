package embedder

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"

	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultGeminiModel = "text-embedding-004"

	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"

	JinaDimension   = 1024
	OpenAIDimension = 1536
	GeminiDimension = 768
	LocalDimension  = 384

	DefaultBatchSize = 50
	MaxBatchSize     = 100

	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	remoteTimeout = 30 * time.Second
)

// RemoteProvider calls an OpenAI-compatible /embeddings endpoint. Jina and
// OpenAI share the request and response shape and differ only in endpoint,
// model and dimension.
type RemoteProvider struct {
	name      string
	model     string
	endpoint  string
	apiKey    string
	dimension int
	client    *resty.Client
	cache     *Cache
	retry     RetryConfig
}

// NewJinaProvider creates a Jina embedder. An empty apiKey falls back to
// JINA_API_KEY.
func NewJinaProvider(apiKey string, cache *Cache) (*RemoteProvider, error) {
	return newRemoteProvider(ProviderJina, apiKey, EnvJinaAPIKey, JinaEndpoint, DefaultJinaModel, JinaDimension, cache)
}

// NewOpenAIProvider creates an OpenAI embedder. An empty apiKey falls back
// to OPENAI_API_KEY.
func NewOpenAIProvider(apiKey string, cache *Cache) (*RemoteProvider, error) {
	return newRemoteProvider(ProviderOpenAI, apiKey, EnvOpenAIAPIKey, OpenAIEndpoint, DefaultOpenAIModel, OpenAIDimension, cache)
}

func newRemoteProvider(name, apiKey, envKey, endpoint, model string, dim int, cache *Cache) (*RemoteProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(envKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, envKey)
	}
	return &RemoteProvider{
		name:      name,
		model:     model,
		endpoint:  endpoint,
		apiKey:    apiKey,
		dimension: dim,
		client:    resty.New().SetTimeout(remoteTimeout),
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}, nil
}

// WithEndpoint points the provider at a different embeddings URL.
func (p *RemoteProvider) WithEndpoint(endpoint string) *RemoteProvider {
	p.endpoint = endpoint
	return p
}

func (p *RemoteProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (p *RemoteProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings, err := cachedBatch(p.cache, req.Texts, func(misses []string) ([]*Embedding, error) {
		out, err := retryWithBackoff(ctx, p.retry, func() ([]*Embedding, error) {
			return p.callAPI(ctx, misses, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, p.retry.MaxRetries, err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{Embeddings: embeddings, Provider: p.name, Model: model}, nil
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (p *RemoteProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	var out embeddingsResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{"input": texts, "model": model}).
		SetResult(&out).
		Post(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	embeddings := make([]*Embedding, len(out.Data))
	for i, d := range out.Data {
		embeddings[i] = &Embedding{
			Vector:    d.Embedding,
			Dimension: len(d.Embedding),
			Provider:  p.name,
			Model:     model,
		}
	}
	return embeddings, nil
}

func (p *RemoteProvider) Dimension() int { return p.dimension }

func (p *RemoteProvider) Provider() string { return p.name }

func (p *RemoteProvider) Model() string { return p.model }

func (p *RemoteProvider) Close() error {
	p.client.GetClient().CloseIdleConnections()
	return nil
}

// NormalizeVector scales v to unit length. A zero vector is returned as is.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
