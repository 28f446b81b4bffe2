package generator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/spotvec/internal/config"
)

func geminiServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func TestGeminiGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("joins candidate parts", func(t *testing.T) {
		server, request := geminiServer(t, http.StatusOK, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "  Smoky late-night jazz"}, {"text": " for slow evenings. "}]}}]
		}`)
		g, err := NewGemini(ctx, "test-key", "", server.URL)
		require.NoError(t, err)

		text, err := g.Generate(ctx, "describe these songs")
		require.NoError(t, err)
		assert.Equal(t, "Smoky late-night jazz for slow evenings.", text)
		assert.Contains(t, *request, "describe these songs")
	})

	t.Run("no candidates is empty text", func(t *testing.T) {
		server, _ := geminiServer(t, http.StatusOK, `{"candidates": []}`)
		g, err := NewGemini(ctx, "test-key", "gemini-test", server.URL)
		require.NoError(t, err)

		text, err := g.Generate(ctx, "prompt")
		require.NoError(t, err)
		assert.Empty(t, text)
	})

	t.Run("provider error", func(t *testing.T) {
		server, _ := geminiServer(t, http.StatusInternalServerError, `{"error": {"code": 500, "message": "boom", "status": "INTERNAL"}}`)
		g, err := NewGemini(ctx, "test-key", "", server.URL)
		require.NoError(t, err)

		_, err = g.Generate(ctx, "prompt")
		assert.Error(t, err)
	})
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	g, err := FromConfig(ctx, config.GeminiConfig{})
	require.NoError(t, err)
	_, err = g.Generate(ctx, "x")
	assert.ErrorIs(t, err, ErrDisabled)

	g, err = FromConfig(ctx, config.GeminiConfig{Enabled: true, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, g)

	_, err = NewGemini(ctx, "", "", "")
	assert.ErrorIs(t, err, ErrDisabled)
}
