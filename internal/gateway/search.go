package gateway

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dshills/spotvec/internal/storage"
	"github.com/dshills/spotvec/pkg/types"
)

// SemanticSearch ranks songs by similarity to query.
func (g *Gateway) SemanticSearch(ctx context.Context, query string, limit int) ([]types.SongResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.Invalid(types.ErrEmptyQuery)
	}
	return g.querySongs(ctx, "semantic search", storage.Query{
		Class:    SongClass,
		NearText: []string{query},
		Limit:    defaultLimit(limit, DefaultLimit),
	})
}

// AdvancedSearch applies filters as a conjunction, ranked by query when it
// is not blank. With neither, it lists up to limit songs.
func (g *Gateway) AdvancedSearch(ctx context.Context, query string, filters Filters, limit int) ([]types.SongResult, error) {
	q := storage.Query{
		Class: SongClass,
		Where: filters.where(),
		Limit: defaultLimit(limit, DefaultLimit),
	}
	if query = strings.TrimSpace(query); query != "" {
		q.NearText = []string{query}
	}
	return g.querySongs(ctx, "advanced search", q)
}

// NearestNeighbors returns up to limit songs closest to the stored song
// songID, never including that song.
func (g *Gateway) NearestNeighbors(ctx context.Context, songID string, limit int) ([]types.SongResult, error) {
	if songID == "" {
		return nil, types.Invalid(types.ErrMissingTrackID)
	}
	limit = defaultLimit(limit, DefaultNeighborLimit)

	if err := g.ensureReady(ctx); err != nil {
		return nil, err
	}

	var targetKey string
	target, targetErr := g.store.GetObject(ctx, SongClass, songID)
	if targetErr != nil {
		log.WithFields(log.Fields{"component": "gateway", "id": songID}).
			Warnf("Could not resolve target song: %v", targetErr)
	} else {
		targetKey, _ = target.Properties[externalIDProperty].(string)
	}

	// one extra result since the target ranks first in its own neighborhood
	neighbors, err := g.querySongs(ctx, "nearest neighbors", storage.Query{
		Class:      SongClass,
		NearObject: songID,
		Limit:      limit + 1,
	})
	if err != nil {
		// an unknown target has no neighborhood
		if targetErr != nil && errors.Is(err, storage.ErrNotFound) {
			return []types.SongResult{}, nil
		}
		return nil, err
	}

	out := neighbors[:0]
	for _, n := range neighbors {
		if targetKey != "" && n.ExternalID == targetKey {
			continue
		}
		out = append(out, n)
	}
	return out[:min(limit, len(out))], nil
}

// SearchPlaylists ranks playlists by similarity to query.
func (g *Gateway) SearchPlaylists(ctx context.Context, query string, limit int) ([]types.PlaylistResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.Invalid(types.ErrEmptyQuery)
	}
	return g.queryPlaylists(ctx, "search playlists", storage.Query{
		Class:    PlaylistClass,
		NearText: []string{query},
		Limit:    defaultLimit(limit, DefaultLimit),
	})
}

// PlaylistsByMood lists playlists whose mood equals mood.
func (g *Gateway) PlaylistsByMood(ctx context.Context, mood string, limit int) ([]types.PlaylistResult, error) {
	mood = strings.TrimSpace(mood)
	if mood == "" {
		return nil, types.Invalid(types.ErrEmptyQuery)
	}
	return g.queryPlaylists(ctx, "playlists by mood", storage.Query{
		Class: PlaylistClass,
		Where: storage.Equal([]string{"mood"}, mood),
		Limit: defaultLimit(limit, DefaultLimit),
	})
}

func (g *Gateway) querySongs(ctx context.Context, op string, q storage.Query) ([]types.SongResult, error) {
	if err := g.ensureReady(ctx); err != nil {
		return nil, err
	}
	hits, err := g.store.Query(ctx, q)
	if err != nil {
		return nil, &types.StoreError{Op: op, Err: err}
	}
	songs, err := songResults(hits)
	if err != nil {
		return nil, &types.StoreError{Op: op, Err: err}
	}
	return songs, nil
}

func (g *Gateway) queryPlaylists(ctx context.Context, op string, q storage.Query) ([]types.PlaylistResult, error) {
	if err := g.ensureReady(ctx); err != nil {
		return nil, err
	}
	hits, err := g.store.Query(ctx, q)
	if err != nil {
		return nil, &types.StoreError{Op: op, Err: err}
	}
	playlists, err := playlistResults(hits)
	if err != nil {
		return nil, &types.StoreError{Op: op, Err: err}
	}
	return playlists, nil
}

func defaultLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
