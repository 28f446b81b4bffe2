// Package service holds the operations exposed at the process boundary.
// The MCP tools and the HTTP routes are thin adapters over a Service.
package service

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/spotvec/internal/auth"
	"github.com/dshills/spotvec/internal/config"
	"github.com/dshills/spotvec/internal/gateway"
	"github.com/dshills/spotvec/internal/ingest"
	"github.com/dshills/spotvec/internal/spotify"
	"github.com/dshills/spotvec/pkg/types"
)

// Service composes the token manager, the Spotify clients, the gateway and
// the ingestion orchestrator.
type Service struct {
	cfg     config.SpotifyConfig
	tokens  *auth.Manager
	api     *spotify.API
	fetcher *spotify.Fetcher
	gateway *gateway.Gateway
	ingest  *ingest.Orchestrator
	genOn   bool
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Tokens    *auth.Manager
	API       *spotify.API
	Fetcher   *spotify.Fetcher
	Gateway   *gateway.Gateway
	Ingest    *ingest.Orchestrator
	Generator bool // whether generated descriptions are enabled
}

// New creates a Service.
func New(cfg config.SpotifyConfig, deps Deps) *Service {
	return &Service{
		cfg:     cfg,
		tokens:  deps.Tokens,
		api:     deps.API,
		fetcher: deps.Fetcher,
		gateway: deps.Gateway,
		ingest:  deps.Ingest,
		genOn:   deps.Generator,
	}
}

// Session wraps a caller credential. It can renew when the credential
// carries a refresh token.
func (s *Service) Session(cred types.AccessCredential) *auth.Session {
	if cred.RefreshToken == "" {
		return auth.BearerSession(cred.AccessToken)
	}
	return auth.NewSession(cred, s.tokens)
}

// AuthURL returns the provider authorize URL for state.
func (s *Service) AuthURL(state string) string {
	return s.tokens.AuthURL(state)
}

// Exchange trades an authorization code for a credential.
func (s *Service) Exchange(ctx context.Context, code string) (types.AccessCredential, error) {
	return s.tokens.Exchange(ctx, code)
}

// Refresh renews a credential from its refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (types.AccessCredential, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// ValidateToken checks an access token against the profile endpoint.
func (s *Service) ValidateToken(ctx context.Context, cred types.AccessCredential) (*types.Profile, error) {
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return nil, types.Invalid(types.ErrMissingCredential)
	}
	return s.api.ValidateToken(ctx, s.Session(cred))
}

// UserPlaylists lists the caller's playlists up to the configured cap.
func (s *Service) UserPlaylists(ctx context.Context, cred types.AccessCredential, limit int) ([]spotifyapi.SimplePlaylist, error) {
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return nil, types.Invalid(types.ErrMissingCredential)
	}
	if limit <= 0 || limit > s.cfg.PlaylistLimit {
		limit = s.cfg.PlaylistLimit
	}
	return s.fetcher.UserPlaylists(ctx, s.Session(cred), limit)
}

// InitStore resets both collections.
func (s *Service) InitStore(ctx context.Context) error {
	return s.gateway.ResetSchema(ctx)
}

// ProcessRequest is a process-playlist call at the boundary.
type ProcessRequest struct {
	PlaylistID string
	Name       string
	Items      []spotify.PlaylistItem
	Credential types.AccessCredential
}

// ProcessPlaylist ingests one playlist.
func (s *Service) ProcessPlaylist(ctx context.Context, req ProcessRequest) (*types.IngestSummary, error) {
	var session *auth.Session
	if req.Credential.AccessToken != "" || req.Credential.RefreshToken != "" {
		session = s.Session(req.Credential)
	}
	return s.ingest.ProcessPlaylist(ctx, ingest.Request{
		PlaylistID: strings.TrimSpace(req.PlaylistID),
		Name:       strings.TrimSpace(req.Name),
		Items:      req.Items,
		Session:    session,
	})
}

// SemanticSearch ranks songs by similarity to query.
func (s *Service) SemanticSearch(ctx context.Context, query string, limit int) ([]types.SongResult, error) {
	return s.gateway.SemanticSearch(ctx, query, limit)
}

// AdvancedSearch filters songs by audio features, optionally ranked by query.
func (s *Service) AdvancedSearch(ctx context.Context, query string, filters map[string]interface{}, limit int) ([]types.SongResult, error) {
	parsed, err := gateway.ParseFilters(filters)
	if err != nil {
		return nil, err
	}
	return s.gateway.AdvancedSearch(ctx, query, parsed, limit)
}

// SimilarSongs returns the stored songs closest to songID.
func (s *Service) SimilarSongs(ctx context.Context, songID string, limit int) ([]types.SongResult, error) {
	return s.gateway.NearestNeighbors(ctx, strings.TrimSpace(songID), limit)
}

// GeneratePlaylist builds a themed selection with a generated description.
func (s *Service) GeneratePlaylist(ctx context.Context, theme, mood string, limit int) (*types.GeneratedPlaylist, error) {
	return s.gateway.GeneratePlaylist(ctx, theme, mood, limit)
}

// SearchPlaylists ranks stored playlists by similarity to query.
func (s *Service) SearchPlaylists(ctx context.Context, query string, limit int) ([]types.PlaylistResult, error) {
	return s.gateway.SearchPlaylists(ctx, query, limit)
}

// PlaylistsByMood lists stored playlists with the given mood.
func (s *Service) PlaylistsByMood(ctx context.Context, mood string, limit int) ([]types.PlaylistResult, error) {
	return s.gateway.PlaylistsByMood(ctx, mood, limit)
}

// StoreHealth reports store readiness. It never fails.
func (s *Service) StoreHealth(ctx context.Context) bool {
	return s.gateway.Health(ctx)
}

// EnvStatus reports which Spotify settings are present.
func (s *Service) EnvStatus() map[string]string {
	return s.cfg.EnvStatus()
}

// Status summarizes store health, stored document counts and configuration.
type Status struct {
	StoreReady       bool              `json:"storeReady"`
	Songs            int               `json:"songs"`
	Playlists        int               `json:"playlists"`
	CountError       string            `json:"countError,omitempty"`
	Spotify          map[string]string `json:"spotify"`
	ExchangeReady    bool              `json:"exchangeReady"`
	GeneratorEnabled bool              `json:"generatorEnabled"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Status probes the store and counts documents concurrently.
func (s *Service) Status(ctx context.Context) *Status {
	st := &Status{
		Spotify:          s.cfg.EnvStatus(),
		ExchangeReady:    s.cfg.RequireExchange() == nil,
		GeneratorEnabled: s.genOn,
		Timestamp:        time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.StoreReady = s.gateway.Health(gctx)
		return nil
	})
	g.Go(func() error {
		songs, playlists, err := s.gateway.Counts(gctx)
		if err != nil {
			return err
		}
		st.Songs, st.Playlists = songs, playlists
		return nil
	})
	if err := g.Wait(); err != nil {
		log.WithField("component", "service").Warnf("Status counts unavailable: %v", err)
		st.CountError = err.Error()
	}
	return st
}
