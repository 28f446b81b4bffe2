// Package gateway is the application's view of the vector store: song and
// playlist collections, writes, semantic queries and generated playlist
// descriptions. A Gateway is constructed explicitly and shared by every
// request handler; it holds no mutable state besides its readiness flag.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/dshills/spotvec/internal/generator"
	"github.com/dshills/spotvec/internal/storage"
	"github.com/dshills/spotvec/pkg/types"
)

const (
	SongClass     = "Song"
	PlaylistClass = "Playlist"

	DefaultBatchSize      = 100
	DefaultLimit          = 10
	DefaultNeighborLimit  = 5
	DefaultGenerateLimit  = 20
	DefaultSummarySamples = 5
	FallbackDescription   = "A curated collection of great music."
	summaryPromptTemplate = "Based on the following songs: %s, write a short, one-sentence, engaging description for this playlist that captures its mood and style:"
	externalIDProperty    = "spotifyId"
)

// SongCollection and PlaylistCollection are the store schema. Songs are
// vectorized from their text fields, playlists from name and description.
var (
	SongCollection = storage.Collection{
		Name:            SongClass,
		Description:     "A song from Spotify with metadata and audio features",
		KeyProperty:     externalIDProperty,
		VectorizeFields: []string{"title", "artist", "album", "genre", "lyrics", "description"},
	}
	PlaylistCollection = storage.Collection{
		Name:            PlaylistClass,
		Description:     "A playlist from Spotify with metadata",
		KeyProperty:     externalIDProperty,
		VectorizeFields: []string{"name", "description"},
	}
)

// Options configures a Gateway.
type Options struct {
	// BatchSize is the chunk size for BatchUpsert (DefaultBatchSize when <= 0).
	BatchSize int
	// PreserveOnStart makes implicit initialization create missing
	// collections only instead of resetting them.
	PreserveOnStart bool
}

// Gateway wraps a Store and a Generator.
type Gateway struct {
	store storage.Store
	gen   generator.Generator
	opts  Options

	ready  atomic.Bool
	initMu sync.Mutex
}

// New creates a gateway. A nil gen disables generated descriptions.
func New(store storage.Store, gen generator.Generator, opts Options) *Gateway {
	if gen == nil {
		gen = generator.Disabled{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Gateway{store: store, gen: gen, opts: opts}
}

// InitializeSchema prepares the collections once. Later calls are no-ops.
func (g *Gateway) InitializeSchema(ctx context.Context) error {
	return g.ensureReady(ctx)
}

// ResetSchema drops and recreates both collections, deleting all data.
func (g *Gateway) ResetSchema(ctx context.Context) error {
	g.initMu.Lock()
	defer g.initMu.Unlock()

	if err := g.resetSchema(ctx); err != nil {
		return err
	}
	g.ready.Store(true)
	return nil
}

// Ready reports whether schema setup has completed.
func (g *Gateway) Ready() bool {
	return g.ready.Load()
}

func (g *Gateway) ensureReady(ctx context.Context) error {
	if g.ready.Load() {
		return nil
	}

	g.initMu.Lock()
	defer g.initMu.Unlock()
	if g.ready.Load() {
		return nil
	}

	var err error
	if g.opts.PreserveOnStart {
		err = g.createMissing(ctx)
	} else {
		err = g.resetSchema(ctx)
	}
	if err != nil {
		return err
	}

	g.ready.Store(true)
	return nil
}

func (g *Gateway) resetSchema(ctx context.Context) error {
	logger := log.WithField("component", "gateway")
	for _, c := range []storage.Collection{SongCollection, PlaylistCollection} {
		if err := g.store.DeleteCollection(ctx, c.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return &types.StoreError{Op: "delete collection " + c.Name, Err: err}
		}
		if err := g.store.CreateCollection(ctx, c); err != nil {
			return &types.StoreError{Op: "create collection " + c.Name, Err: err}
		}
	}
	logger.Info("Schema initialized")
	return nil
}

func (g *Gateway) createMissing(ctx context.Context) error {
	for _, c := range []storage.Collection{SongCollection, PlaylistCollection} {
		if err := g.store.CreateCollection(ctx, c); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return &types.StoreError{Op: "create collection " + c.Name, Err: err}
		}
	}
	log.WithField("component", "gateway").Info("Schema ready, existing data kept")
	return nil
}

// Upsert stores one song and returns its store id.
func (g *Gateway) Upsert(ctx context.Context, song types.Song) (string, error) {
	if err := g.ensureReady(ctx); err != nil {
		return "", err
	}
	if err := song.Validate(); err != nil {
		return "", types.Invalid(err)
	}

	obj, err := songObject(song)
	if err != nil {
		return "", &types.StoreError{Op: "encode song", Err: err}
	}
	id, err := g.store.CreateObject(ctx, obj)
	if err != nil {
		return "", &types.StoreError{Op: "upsert song " + song.ExternalID, Err: err}
	}
	return id, nil
}

// UpsertPlaylist stores one playlist and returns its store id.
func (g *Gateway) UpsertPlaylist(ctx context.Context, playlist types.Playlist) (string, error) {
	if err := g.ensureReady(ctx); err != nil {
		return "", err
	}
	if err := playlist.Validate(); err != nil {
		return "", types.Invalid(err)
	}

	obj, err := toObject(PlaylistClass, playlist)
	if err != nil {
		return "", &types.StoreError{Op: "encode playlist", Err: err}
	}
	id, err := g.store.CreateObject(ctx, obj)
	if err != nil {
		return "", &types.StoreError{Op: "upsert playlist " + playlist.ExternalID, Err: err}
	}
	return id, nil
}

// BatchUpsert stores songs in chunks of Options.BatchSize. A failed chunk
// is logged and contributes no ids; later chunks still run. The returned
// error is non-nil only when the schema could not be prepared.
func (g *Gateway) BatchUpsert(ctx context.Context, songs []types.Song) ([]string, error) {
	if err := g.ensureReady(ctx); err != nil {
		return nil, err
	}

	logger := log.WithField("component", "gateway")
	ids := make([]string, 0, len(songs))
	size := g.opts.BatchSize

	for start := 0; start < len(songs); start += size {
		end := min(start+size, len(songs))
		chunk := start/size + 1

		chunkIDs, err := g.writeChunk(ctx, songs[start:end])
		if err != nil {
			logger.WithFields(log.Fields{"chunk": chunk, "songs": end - start}).
				Warnf("Batch chunk failed: %v", err)
			continue
		}
		ids = append(ids, chunkIDs...)
		logger.WithField("chunk", chunk).Debugf("Batch chunk stored: %d songs", len(chunkIDs))
	}
	return ids, nil
}

func (g *Gateway) writeChunk(ctx context.Context, songs []types.Song) ([]string, error) {
	objs := make([]*storage.Object, len(songs))
	for i, s := range songs {
		if err := s.Validate(); err != nil {
			return nil, types.Invalid(fmt.Errorf("song %d: %w", i, err))
		}
		obj, err := songObject(s)
		if err != nil {
			return nil, err
		}
		objs[i] = obj
	}
	ids, err := g.store.BatchCreate(ctx, objs)
	if err != nil {
		return nil, &types.StoreError{Op: "batch create", Err: err}
	}
	return ids, nil
}

// Summarize asks the generator for a one-sentence description of the first
// maxSamples titles. The fallback description is returned when there are no
// titles, generation is disabled or the provider returns no text.
func (g *Gateway) Summarize(ctx context.Context, titles []string, maxSamples int) (string, error) {
	if maxSamples <= 0 {
		maxSamples = DefaultSummarySamples
	}
	if len(titles) == 0 {
		return FallbackDescription, nil
	}

	sample := titles[:min(maxSamples, len(titles))]
	prompt := fmt.Sprintf(summaryPromptTemplate, strings.Join(sample, ", "))

	text, err := g.gen.Generate(ctx, prompt)
	if errors.Is(err, generator.ErrDisabled) {
		return FallbackDescription, nil
	}
	if err != nil {
		return "", &types.StoreError{Op: "generate description", Err: err}
	}
	if text = strings.TrimSpace(text); text == "" {
		return FallbackDescription, nil
	}
	return text, nil
}

// GeneratePlaylist selects songs matching theme and mood and describes them.
func (g *Gateway) GeneratePlaylist(ctx context.Context, theme, mood string, limit int) (*types.GeneratedPlaylist, error) {
	if limit <= 0 {
		limit = DefaultGenerateLimit
	}
	query := strings.TrimSpace(strings.Join(strings.Fields(theme+" "+mood), " "))
	if query == "" {
		return nil, types.Invalid(types.ErrEmptyQuery)
	}

	songs, err := g.SemanticSearch(ctx, query+" music", limit)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, DefaultSummarySamples)
	for _, s := range songs[:min(DefaultSummarySamples, len(songs))] {
		titles = append(titles, s.Title+" by "+s.Artist)
	}
	description, err := g.Summarize(ctx, titles, DefaultSummarySamples)
	if err != nil {
		return nil, err
	}

	return &types.GeneratedPlaylist{
		Name:        strings.TrimSpace(theme + " " + mood + " Mix"),
		Description: description,
		Theme:       theme,
		Mood:        mood,
		Songs:       songs,
	}, nil
}

// Health delegates to the store's readiness probe. Errors mean not ready.
func (g *Gateway) Health(ctx context.Context) bool {
	ok, err := g.store.Ready(ctx)
	if err != nil {
		log.WithField("component", "gateway").Debugf("Store not ready: %v", err)
		return false
	}
	return ok
}

// Counts returns the number of stored songs and playlists.
func (g *Gateway) Counts(ctx context.Context) (songs, playlists int, err error) {
	if err := g.ensureReady(ctx); err != nil {
		return 0, 0, err
	}
	if songs, err = g.store.Count(ctx, SongClass); err != nil {
		return 0, 0, &types.StoreError{Op: "count songs", Err: err}
	}
	if playlists, err = g.store.Count(ctx, PlaylistClass); err != nil {
		return 0, 0, &types.StoreError{Op: "count playlists", Err: err}
	}
	return songs, playlists, nil
}
