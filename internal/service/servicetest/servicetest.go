// Package servicetest builds a Service over an in-memory store and a fake
// Spotify API for boundary tests.
package servicetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dshills/spotvec/internal/auth"
	"github.com/dshills/spotvec/internal/config"
	"github.com/dshills/spotvec/internal/embedder"
	"github.com/dshills/spotvec/internal/gateway"
	"github.com/dshills/spotvec/internal/ingest"
	"github.com/dshills/spotvec/internal/service"
	"github.com/dshills/spotvec/internal/spotify"
	"github.com/dshills/spotvec/internal/storage"
)

// Tokens understood by the fake API.
const (
	GoodToken    = "good-token"
	RefreshToken = "good-refresh"
	GoodCode     = "good-code"
)

// PlaylistTracksJSON is the single page served for playlist "p1".
const PlaylistTracksJSON = `{"items": [
	{"track": {"id": "t1", "name": "Smoky jazz club", "artists": [{"name": "Trio"}], "album": {"name": "Nights", "release_date": "1999"}}},
	{"track": {"id": "t2", "name": "Late night jazz piano", "artists": [{"name": "Trio"}], "album": {"name": "Nights"}}},
	{"track": {"id": "t3", "name": "Thrash metal riot", "artists": [{"name": "Noise"}], "album": {"name": "Loud"}}},
	{"track": null}
], "next": null, "total": 4}`

// Fixture is a Service wired to fakes.
type Fixture struct {
	Service *service.Service
	Server  *httptest.Server
	Gateway *gateway.Gateway
	Config  *config.Config
}

// New creates a Fixture. All Spotify settings are set.
func New(t testing.TB) *Fixture {
	t.Helper()
	server := httptest.NewServer(Handler())
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Spotify: config.SpotifyConfig{
			ClientID:      "client",
			ClientSecret:  "secret",
			RedirectURI:   "http://localhost/callback",
			APIURL:        server.URL + "/v1/",
			AccountsURL:   server.URL,
			PlaylistLimit: 200,
		},
		Store: config.StoreConfig{DBPath: ":memory:", BatchSize: gateway.DefaultBatchSize},
	}

	emb, err := embedder.NewLocalProvider(nil)
	if err != nil {
		t.Fatalf("embedder: %v", err)
	}
	store, err := storage.NewSQLiteStore(cfg.Store.DBPath, emb)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	gw := gateway.New(store, nil, gateway.Options{BatchSize: cfg.Store.BatchSize})
	api := spotify.NewAPI(cfg.Spotify.APIURL, nil)
	fetcher := spotify.NewFetcher(api, nil)

	svc := service.New(cfg.Spotify, service.Deps{
		Tokens:  auth.NewManager(cfg.Spotify, nil),
		API:     api,
		Fetcher: fetcher,
		Gateway: gw,
		Ingest:  ingest.New(fetcher, spotify.NewEnricher(api, 0), gw),
	})
	return &Fixture{Service: svc, Server: server, Gateway: gw, Config: cfg}
}

// Handler serves the token endpoint under /api/token and the Web API under
// /v1/. Only GoodToken is accepted.
func Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		ok := (r.Form.Get("grant_type") == "authorization_code" && r.Form.Get("code") == GoodCode) ||
			(r.Form.Get("grant_type") == "refresh_token" && r.Form.Get("refresh_token") == RefreshToken)
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid authorization code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"` + GoodToken + `","token_type":"Bearer","expires_in":3600,"refresh_token":"` + RefreshToken + `"}`))
	})

	api := http.NewServeMux()
	api.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "ada1", "display_name": "Ada"}`))
	})
	api.HandleFunc("/v1/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [
			{"id": "p1", "name": "Evening", "owner": {"display_name": "Ada"}, "tracks": {"total": 4}},
			{"id": "p2", "name": "Gym", "owner": {"display_name": "Ada"}, "tracks": {"total": 0}}
		], "next": null, "total": 2}`))
	})
	api.HandleFunc("/v1/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(PlaylistTracksJSON))
	})
	api.HandleFunc("/v1/audio-features", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("ids")
		energy := 0.3
		if id == "t3" {
			energy = 0.95
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"audio_features": []interface{}{map[string]interface{}{"id": id, "energy": energy, "tempo": 118.0}},
		})
	})

	mux.Handle("/v1/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.Header.Get("Authorization"), " "+GoodToken) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		api.ServeHTTP(w, r)
	}))
	return mux
}
