// Package generator produces short natural-language text from a prompt.
// The gateway uses it to describe generated playlists.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/dshills/spotvec/internal/config"
)

// GenerateTimeout bounds a single generation request.
const GenerateTimeout = 30 * time.Second

// ErrDisabled is returned by a generator that has no provider configured.
var ErrDisabled = errors.New("text generation is disabled")

// Generator returns generated text for prompt. An empty string with a nil
// error means the provider answered without text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gemini generates text with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. baseURL overrides the API endpoint
// and is empty outside tests.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrDisabled)
	}
	if model == "" {
		model = config.DefaultGeminiModel
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, GenerateTimeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		// first candidate with content wins
		if sb.Len() > 0 {
			break
		}
	}

	text := strings.TrimSpace(sb.String())
	log.WithFields(log.Fields{"component": "generator", "model": g.model}).
		Debugf("Generated %d characters", len(text))
	return text, nil
}

// Disabled is the generator used when no provider is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrDisabled
}

// FromConfig returns a Gemini generator when generation is enabled and a
// Disabled one otherwise.
func FromConfig(ctx context.Context, cfg config.GeminiConfig) (Generator, error) {
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	return NewGemini(ctx, cfg.APIKey, cfg.Model, "")
}
