package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/spotvec/internal/config"
	"github.com/dshills/spotvec/pkg/types"
)

func testConfig(accountsURL string) config.SpotifyConfig {
	return config.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://127.0.0.1:3000/callback",
		AccountsURL:  accountsURL,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestManagerExchange(t *testing.T) {
	t.Run("successful exchange", func(t *testing.T) {
		var form url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/token", r.URL.Path)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			require.NoError(t, r.ParseForm())
			form = r.PostForm
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
				"scope":         "user-read-email playlist-read-private",
			})
		}))
		defer server.Close()

		m := NewManager(testConfig(server.URL), nil)
		cred, err := m.Exchange(context.Background(), "auth-code")
		require.NoError(t, err)

		assert.Equal(t, "access-1", cred.AccessToken)
		assert.Equal(t, "refresh-1", cred.RefreshToken)
		assert.Equal(t, []string{"playlist-read-private", "user-read-email"}, cred.Scope)
		assert.WithinDuration(t, time.Now().Add(time.Hour), cred.Expiry, time.Minute)

		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "auth-code", form.Get("code"))
		assert.Equal(t, "client-id", form.Get("client_id"))
		assert.Equal(t, "client-secret", form.Get("client_secret"))
		assert.Equal(t, "http://127.0.0.1:3000/callback", form.Get("redirect_uri"))
	})

	t.Run("missing code", func(t *testing.T) {
		m := NewManager(testConfig("http://unused"), nil)
		_, err := m.Exchange(context.Background(), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrMissingCode)
		assert.Equal(t, types.KindValidation, types.KindOf(err))
	})

	t.Run("missing configuration fails before any request", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		cfg := testConfig(server.URL)
		cfg.RedirectURI = ""
		m := NewManager(cfg, nil)

		_, err := m.Exchange(context.Background(), "code")
		var cfgErr *types.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, []string{"SPOTIFY_REDIRECT_URI"}, cfgErr.Missing)
		assert.False(t, called)
	})

	providerErrors := []struct {
		name        string
		status      int
		code        string
		description string
		want        error
	}{
		{"invalid client", http.StatusBadRequest, "invalid_client", "Invalid client secret", types.ErrInvalidClient},
		{"expired code", http.StatusBadRequest, "invalid_grant", "Authorization code expired", types.ErrInvalidGrant},
		{"redirect mismatch code", http.StatusBadRequest, "redirect_uri_mismatch", "", types.ErrRedirectMismatch},
		{"redirect reported as invalid grant", http.StatusBadRequest, "invalid_grant", "Invalid redirect URI", types.ErrRedirectMismatch},
		{"unknown provider error", http.StatusBadRequest, "unsupported_grant_type", "", types.ErrProviderRejected},
	}
	for _, tt := range providerErrors {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{
					"error":             tt.code,
					"error_description": tt.description,
				})
			}))
			defer server.Close()

			m := NewManager(testConfig(server.URL), nil)
			_, err := m.Exchange(context.Background(), "code")
			require.Error(t, err)

			var authErr *types.AuthError
			require.True(t, errors.As(err, &authErr))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.status, authErr.Status)
			assert.Equal(t, tt.code, authErr.ProviderErr)
			assert.Equal(t, types.KindAuth, types.KindOf(err))
		})
	}

	t.Run("timeout is distinct from rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		m := NewManager(testConfig(server.URL), nil)
		m.timeout = 50 * time.Millisecond

		_, err := m.Exchange(context.Background(), "code")
		require.Error(t, err)
		assert.Equal(t, types.KindTimeout, types.KindOf(err))

		var authErr *types.AuthError
		assert.False(t, errors.As(err, &authErr))
	})
}

func TestManagerRefresh(t *testing.T) {
	t.Run("keeps old refresh token when provider omits it", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"access_token": "access-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		}))
		defer server.Close()

		m := NewManager(testConfig(server.URL), nil)
		cred, err := m.Refresh(context.Background(), "old-refresh")
		require.NoError(t, err)
		assert.Equal(t, "access-2", cred.AccessToken)
		assert.Equal(t, "old-refresh", cred.RefreshToken)
	})

	t.Run("uses rotated refresh token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"access_token":  "access-3",
				"refresh_token": "new-refresh",
				"expires_in":    3600,
			})
		}))
		defer server.Close()

		m := NewManager(testConfig(server.URL), nil)
		cred, err := m.Refresh(context.Background(), "old-refresh")
		require.NoError(t, err)
		assert.Equal(t, "new-refresh", cred.RefreshToken)
	})

	t.Run("refresh does not need redirect uri", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "a", "expires_in": 60})
		}))
		defer server.Close()

		cfg := testConfig(server.URL)
		cfg.RedirectURI = ""
		_, err := NewManager(cfg, nil).Refresh(context.Background(), "r")
		assert.NoError(t, err)
	})

	t.Run("revoked refresh token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Refresh token revoked",
			})
		}))
		defer server.Close()

		_, err := NewManager(testConfig(server.URL), nil).Refresh(context.Background(), "r")
		assert.ErrorIs(t, err, types.ErrInvalidGrant)
	})

	t.Run("missing refresh token", func(t *testing.T) {
		_, err := NewManager(testConfig("http://unused"), nil).Refresh(context.Background(), "")
		assert.ErrorIs(t, err, types.ErrMissingRefreshToken)
	})
}

func TestManagerAuthURL(t *testing.T) {
	m := NewManager(testConfig(config.DefaultAccountsURL), nil)
	u, err := url.Parse(m.AuthURL("state-1"))
	require.NoError(t, err)

	assert.Equal(t, "accounts.spotify.com", u.Host)
	assert.Equal(t, "/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.True(t, strings.Contains(q.Get("scope"), "playlist-read-private"))
}
