package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/spotvec/internal/embedder"
	"github.com/dshills/spotvec/internal/generator"
	"github.com/dshills/spotvec/internal/storage"
	"github.com/dshills/spotvec/pkg/types"
)

// fakeStore records calls and delegates to optional hooks.
type fakeStore struct {
	mu          sync.Mutex
	created     []string
	deleted     []string
	batches     [][]*storage.Object
	queries     []storage.Query
	batchCreate func(objs []*storage.Object) ([]string, error)
	query       func(q storage.Query) ([]storage.Hit, error)
	getObject   func(class, id string) (*storage.Object, error)
	createErr   error
	ready       bool
	readyErr    error
}

func (f *fakeStore) CreateCollection(_ context.Context, c storage.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c.Name)
	return f.createErr
}

func (f *fakeStore) DeleteCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return storage.ErrNotFound
}

func (f *fakeStore) ListCollections(context.Context) ([]storage.Collection, error) {
	return nil, nil
}

func (f *fakeStore) CreateObject(_ context.Context, obj *storage.Object) (string, error) {
	return "id-" + fmt.Sprint(obj.Properties[externalIDProperty]), nil
}

func (f *fakeStore) BatchCreate(_ context.Context, objs []*storage.Object) ([]string, error) {
	f.mu.Lock()
	f.batches = append(f.batches, objs)
	f.mu.Unlock()
	if f.batchCreate != nil {
		return f.batchCreate(objs)
	}
	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = "id-" + fmt.Sprint(o.Properties[externalIDProperty])
	}
	return ids, nil
}

func (f *fakeStore) GetObject(_ context.Context, class, id string) (*storage.Object, error) {
	if f.getObject != nil {
		return f.getObject(class, id)
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) Count(context.Context, string) (int, error) { return 3, nil }

func (f *fakeStore) Query(_ context.Context, q storage.Query) ([]storage.Hit, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.query != nil {
		return f.query(q)
	}
	return nil, nil
}

func (f *fakeStore) Ready(context.Context) (bool, error) { return f.ready, f.readyErr }

func (f *fakeStore) Close() error { return nil }

type fakeGenerator struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func songHit(id, externalID, title string) storage.Hit {
	return storage.Hit{Object: &storage.Object{
		ID:    id,
		Class: SongClass,
		Properties: map[string]interface{}{
			"spotifyId": externalID,
			"title":     title,
			"artist":    "artist-" + externalID,
		},
	}}
}

func makeSongs(n int) []types.Song {
	songs := make([]types.Song, n)
	for i := range songs {
		songs[i] = types.Song{ExternalID: fmt.Sprintf("s%03d", i), Title: fmt.Sprintf("Song %d", i)}
	}
	return songs
}

func TestInitializeSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("reset once", func(t *testing.T) {
		store := &fakeStore{}
		g := New(store, nil, Options{})

		require.NoError(t, g.InitializeSchema(ctx))
		require.NoError(t, g.InitializeSchema(ctx))
		_, err := g.SemanticSearch(ctx, "jazz", 5)
		require.NoError(t, err)

		assert.True(t, g.Ready())
		assert.Equal(t, []string{SongClass, PlaylistClass}, store.deleted)
		assert.Equal(t, []string{SongClass, PlaylistClass}, store.created)
	})

	t.Run("preserve keeps existing collections", func(t *testing.T) {
		store := &fakeStore{createErr: storage.ErrAlreadyExists}
		g := New(store, nil, Options{PreserveOnStart: true})

		require.NoError(t, g.InitializeSchema(ctx))
		assert.Empty(t, store.deleted)
		assert.Len(t, store.created, 2)
	})

	t.Run("reset always drops", func(t *testing.T) {
		store := &fakeStore{}
		g := New(store, nil, Options{PreserveOnStart: true})

		require.NoError(t, g.InitializeSchema(ctx))
		require.NoError(t, g.ResetSchema(ctx))
		assert.Equal(t, []string{SongClass, PlaylistClass}, store.deleted)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &fakeStore{createErr: errors.New("disk full")}
		g := New(store, nil, Options{})

		err := g.InitializeSchema(ctx)
		require.Error(t, err)
		assert.Equal(t, types.KindStore, types.KindOf(err))
		assert.False(t, g.Ready())
	})

	t.Run("concurrent callers initialize once", func(t *testing.T) {
		store := &fakeStore{}
		g := New(store, nil, Options{})

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, g.InitializeSchema(ctx))
			}()
		}
		wg.Wait()
		assert.Len(t, store.created, 2)
	})
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	g := New(&fakeStore{}, nil, Options{})

	id, err := g.Upsert(ctx, types.Song{ExternalID: "abc", Title: "Blue"})
	require.NoError(t, err)
	assert.Equal(t, "id-abc", id)

	_, err = g.Upsert(ctx, types.Song{Title: "no id"})
	assert.ErrorIs(t, err, types.ErrMissingExternalID)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = g.Upsert(ctx, types.Song{ExternalID: "x", Popularity: 101})
	assert.ErrorIs(t, err, types.ErrInvalidPopularity)

	id, err = g.UpsertPlaylist(ctx, types.Playlist{ExternalID: "p1", Name: "Mix", SongCount: 3})
	require.NoError(t, err)
	assert.Equal(t, "id-p1", id)

	_, err = g.UpsertPlaylist(ctx, types.Playlist{ExternalID: "p1", SongCount: -1})
	assert.ErrorIs(t, err, types.ErrInvalidSongCount)
}

func TestBatchUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("chunks", func(t *testing.T) {
		store := &fakeStore{}
		g := New(store, nil, Options{})

		ids, err := g.BatchUpsert(ctx, makeSongs(250))
		require.NoError(t, err)
		assert.Len(t, ids, 250)

		require.Len(t, store.batches, 3)
		assert.Len(t, store.batches[0], 100)
		assert.Len(t, store.batches[1], 100)
		assert.Len(t, store.batches[2], 50)
		assert.Equal(t, "s000", store.batches[0][0].Properties["spotifyId"])
		assert.Equal(t, "s249", store.batches[2][49].Properties["spotifyId"])
	})

	t.Run("failed chunk is skipped", func(t *testing.T) {
		store := &fakeStore{}
		calls := 0
		store.batchCreate = func(objs []*storage.Object) ([]string, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("write failed")
			}
			ids := make([]string, len(objs))
			for i, o := range objs {
				ids[i] = o.Properties["spotifyId"].(string)
			}
			return ids, nil
		}
		g := New(store, nil, Options{})

		ids, err := g.BatchUpsert(ctx, makeSongs(250))
		require.NoError(t, err)
		assert.Len(t, ids, 150)
		assert.Equal(t, "s099", ids[99])
		assert.Equal(t, "s200", ids[100])
		assert.Equal(t, 3, calls)
	})

	t.Run("invalid song fails its chunk", func(t *testing.T) {
		store := &fakeStore{}
		g := New(store, nil, Options{BatchSize: 2})

		songs := makeSongs(4)
		songs[3].ExternalID = ""
		ids, err := g.BatchUpsert(ctx, songs)
		require.NoError(t, err)
		assert.Equal(t, []string{"id-s000", "id-s001"}, ids)
		assert.Len(t, store.batches, 1)
	})

	t.Run("empty", func(t *testing.T) {
		ids, err := New(&fakeStore{}, nil, Options{}).BatchUpsert(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestSemanticSearch(t *testing.T) {
	ctx := context.Background()
	certainty := 0.91
	store := &fakeStore{query: func(q storage.Query) ([]storage.Hit, error) {
		h := songHit("u1", "t1", "Blue in Green")
		h.Certainty = &certainty
		return []storage.Hit{h}, nil
	}}
	g := New(store, nil, Options{})

	results, err := g.SemanticSearch(ctx, "  chill jazz ", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u1", results[0].ID)
	assert.Equal(t, "t1", results[0].ExternalID)
	assert.Equal(t, "Blue in Green", results[0].Title)
	assert.InDelta(t, 0.91, results[0].Certainty, 1e-9)

	q := store.queries[0]
	assert.Equal(t, []string{"chill jazz"}, q.NearText)
	assert.Equal(t, DefaultLimit, q.Limit)

	_, err = g.SemanticSearch(ctx, "   ", 5)
	assert.ErrorIs(t, err, types.ErrEmptyQuery)

	store.query = func(storage.Query) ([]storage.Hit, error) { return nil, errors.New("boom") }
	_, err = g.SemanticSearch(ctx, "jazz", 5)
	assert.Equal(t, types.KindStore, types.KindOf(err))
}

func TestAdvancedSearch(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	g := New(store, nil, Options{})

	filters, err := ParseFilters(map[string]interface{}{"minEnergy": 0.8, "ignored": "x"})
	require.NoError(t, err)

	_, err = g.AdvancedSearch(ctx, "", filters, 5)
	require.NoError(t, err)

	q := store.queries[0]
	assert.Empty(t, q.NearText)
	assert.Equal(t, 5, q.Limit)
	require.NotNil(t, q.Where)
	assert.Equal(t, storage.OpAnd, q.Where.Operator)
	require.Len(t, q.Where.Operands, 1)
	op := q.Where.Operands[0]
	assert.Equal(t, storage.OpGreaterThanEqual, op.Operator)
	assert.Equal(t, []string{"audioFeatures", "energy"}, op.Path)
	assert.InDelta(t, 0.8, *op.ValueNumber, 1e-9)

	_, err = g.AdvancedSearch(ctx, "dance", nil, 0)
	require.NoError(t, err)
	assert.Nil(t, store.queries[1].Where)
	assert.Equal(t, []string{"dance"}, store.queries[1].NearText)
}

func TestParseFilters(t *testing.T) {
	filters, err := ParseFilters(map[string]interface{}{
		"maxTempo":        "140",
		"minTempo":        90,
		"minDanceability": 0.5,
		"maxValence":      nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Filters{
		{Feature: Danceability, Bound: Min, Value: 0.5},
		{Feature: Tempo, Bound: Min, Value: 90},
		{Feature: Tempo, Bound: Max, Value: 140},
	}, filters)

	_, err = ParseFilters(map[string]interface{}{"minEnergy": true})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	where := filters.where()
	require.NotNil(t, where)
	assert.Equal(t, storage.OpAnd, where.Operator)
	require.Len(t, where.Operands, 3)
	assert.Equal(t, storage.GreaterThanEqual([]string{"audioFeatures", "danceability"}, 0.5), where.Operands[0])
	assert.Equal(t, storage.LessThanEqual([]string{"audioFeatures", "tempo"}, 140), where.Operands[2])

	filters, err = ParseFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, filters.where())
}

func TestNearestNeighbors(t *testing.T) {
	ctx := context.Background()
	neighbors := func(storage.Query) ([]storage.Hit, error) {
		return []storage.Hit{
			songHit("u1", "t1", "Target"),
			songHit("u2", "t2", "Close"),
			songHit("u3", "t3", "Closer still"),
			songHit("u4", "t4", "Far"),
		}, nil
	}

	t.Run("excludes target", func(t *testing.T) {
		store := &fakeStore{query: neighbors, getObject: func(class, id string) (*storage.Object, error) {
			return songHit(id, "t1", "Target").Object, nil
		}}
		g := New(store, nil, Options{})

		results, err := g.NearestNeighbors(ctx, "u1", 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for _, r := range results {
			assert.NotEqual(t, "t1", r.ExternalID)
		}
		assert.Equal(t, "u1", store.queries[0].NearObject)
		assert.Equal(t, 4, store.queries[0].Limit)
	})

	t.Run("unresolved target truncates", func(t *testing.T) {
		store := &fakeStore{query: neighbors}
		g := New(store, nil, Options{})

		results, err := g.NearestNeighbors(ctx, "u1", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "u1", results[0].ID)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := New(&fakeStore{}, nil, Options{}).NearestNeighbors(ctx, "", 2)
		assert.ErrorIs(t, err, types.ErrMissingTrackID)
	})

	t.Run("unknown target is empty", func(t *testing.T) {
		store := &fakeStore{query: func(storage.Query) ([]storage.Hit, error) {
			return nil, storage.ErrNotFound
		}}
		results, err := New(store, nil, Options{}).NearestNeighbors(ctx, "nope", 2)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &fakeStore{query: func(storage.Query) ([]storage.Hit, error) {
			return nil, errors.New("database is locked")
		}}
		_, err := New(store, nil, Options{}).NearestNeighbors(ctx, "u1", 2)
		assert.Equal(t, types.KindStore, types.KindOf(err))
	})
}

func TestPlaylistQueries(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{query: func(q storage.Query) ([]storage.Hit, error) {
		return []storage.Hit{{Object: &storage.Object{
			ID:         "p-uuid",
			Class:      PlaylistClass,
			Properties: map[string]interface{}{"spotifyId": "p1", "name": "Rainy", "mood": "calm", "songCount": 4.0},
		}}}, nil
	}}
	g := New(store, nil, Options{})

	results, err := g.PlaylistsByMood(ctx, "calm", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Rainy", results[0].Name)
	assert.Equal(t, 4, results[0].SongCount)

	where := store.queries[0].Where
	require.NotNil(t, where)
	assert.Equal(t, storage.OpEqual, where.Operator)
	assert.Equal(t, []string{"mood"}, where.Path)
	assert.Equal(t, "calm", *where.ValueString)

	_, err = g.SearchPlaylists(ctx, "rain", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"rain"}, store.queries[1].NearText)

	_, err = g.SearchPlaylists(ctx, "", 3)
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	t.Run("no titles skips provider", func(t *testing.T) {
		gen := &fakeGenerator{text: "unused"}
		text, err := New(&fakeStore{}, gen, Options{}).Summarize(ctx, nil, 5)
		require.NoError(t, err)
		assert.Equal(t, FallbackDescription, text)
		assert.Empty(t, gen.prompts)
	})

	t.Run("samples first titles", func(t *testing.T) {
		gen := &fakeGenerator{text: "  Smooth late-night grooves.\n"}
		titles := []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7"}
		text, err := New(&fakeStore{}, gen, Options{}).Summarize(ctx, titles, 5)
		require.NoError(t, err)
		assert.Equal(t, "Smooth late-night grooves.", text)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "t1, t2, t3, t4, t5,")
		assert.NotContains(t, gen.prompts[0], "t6")
	})

	t.Run("disabled", func(t *testing.T) {
		text, err := New(&fakeStore{}, nil, Options{}).Summarize(ctx, []string{"a"}, 5)
		require.NoError(t, err)
		assert.Equal(t, FallbackDescription, text)
	})

	t.Run("empty response", func(t *testing.T) {
		text, err := New(&fakeStore{}, &fakeGenerator{}, Options{}).Summarize(ctx, []string{"a"}, 5)
		require.NoError(t, err)
		assert.Equal(t, FallbackDescription, text)
	})

	t.Run("provider failure", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota")}
		_, err := New(&fakeStore{}, gen, Options{}).Summarize(ctx, []string{"a"}, 5)
		assert.Equal(t, types.KindStore, types.KindOf(err))
	})

	t.Run("explicitly disabled generator", func(t *testing.T) {
		text, err := New(&fakeStore{}, generator.Disabled{}, Options{}).Summarize(ctx, []string{"a"}, 5)
		require.NoError(t, err)
		assert.Equal(t, FallbackDescription, text)
	})
}

func TestGeneratePlaylist(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{query: func(q storage.Query) ([]storage.Hit, error) {
		var hits []storage.Hit
		for i := range 7 {
			id := fmt.Sprintf("t%d", i)
			hits = append(hits, songHit("u"+id, id, "Song "+id))
		}
		return hits, nil
	}}
	gen := &fakeGenerator{text: "Bright and bouncy."}
	g := New(store, gen, Options{})

	playlist, err := g.GeneratePlaylist(ctx, "summer", "happy", 0)
	require.NoError(t, err)

	assert.Equal(t, "summer happy Mix", playlist.Name)
	assert.Equal(t, "Bright and bouncy.", playlist.Description)
	assert.Equal(t, "summer", playlist.Theme)
	assert.Equal(t, "happy", playlist.Mood)
	assert.Len(t, playlist.Songs, 7)

	assert.Equal(t, []string{"summer happy music"}, store.queries[0].NearText)
	assert.Equal(t, DefaultGenerateLimit, store.queries[0].Limit)
	assert.Contains(t, gen.prompts[0], "Song t0 by artist-t0")
	assert.NotContains(t, gen.prompts[0], "Song t5")
}

func TestHealthAndCounts(t *testing.T) {
	ctx := context.Background()

	assert.True(t, New(&fakeStore{ready: true}, nil, Options{}).Health(ctx))
	assert.False(t, New(&fakeStore{ready: true, readyErr: errors.New("down")}, nil, Options{}).Health(ctx))

	songs, playlists, err := New(&fakeStore{}, nil, Options{}).Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, songs)
	assert.Equal(t, 3, playlists)
}

// TestGatewayWithSQLite runs the gateway against a real store.
func TestGatewayWithSQLite(t *testing.T) {
	ctx := context.Background()
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	store, err := storage.NewSQLiteStore(":memory:", emb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g := New(store, nil, Options{})

	songs := []types.Song{
		{ExternalID: "j1", Title: "Smoky jazz club", Artist: "Trio", AudioFeatures: types.AudioFeatures{Energy: 0.3}},
		{ExternalID: "j2", Title: "Late night jazz piano", Artist: "Trio", AudioFeatures: types.AudioFeatures{Energy: 0.2}},
		{ExternalID: "m1", Title: "Thrash metal riot", Artist: "Noise", AudioFeatures: types.AudioFeatures{Energy: 0.95}},
	}
	ids, err := g.BatchUpsert(ctx, songs)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	// re-ingesting the same song keeps one record
	again, err := g.Upsert(ctx, songs[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], again)

	filters, err := ParseFilters(map[string]interface{}{"minEnergy": 0.8})
	require.NoError(t, err)
	energetic, err := g.AdvancedSearch(ctx, "", filters, 10)
	require.NoError(t, err)
	require.Len(t, energetic, 1)
	assert.Equal(t, "m1", energetic[0].ExternalID)

	jazz, err := g.SemanticSearch(ctx, "jazz", 2)
	require.NoError(t, err)
	require.NotEmpty(t, jazz)
	assert.Equal(t, "Trio", jazz[0].Artist)

	neighbors, err := g.NearestNeighbors(ctx, ids[0], 5)
	require.NoError(t, err)
	assert.Len(t, neighbors, 2)
	for _, n := range neighbors {
		assert.NotEqual(t, "j1", n.ExternalID)
	}

	n, _, err := g.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
