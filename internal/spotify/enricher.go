package spotify

import (
	"context"
	"iter"
	"time"

	log "github.com/sirupsen/logrus"
	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/dshills/spotvec/internal/auth"
	"github.com/dshills/spotvec/pkg/types"
)

const (
	// FeatureTimeout bounds a single audio feature lookup.
	FeatureTimeout = 5 * time.Second

	// DefaultEnrichDelay separates successive successful lookups.
	DefaultEnrichDelay = 100 * time.Millisecond
)

// Result is the outcome of enriching one track. A non-nil Err marks the
// track as skipped and carries the cause.
type Result struct {
	TrackID  string
	Features *types.AudioFeatures
	Err      error
}

// Skipped reports whether the track could not be enriched.
func (r Result) Skipped() bool {
	return r.Err != nil
}

// Enricher looks up audio features one track at a time, in input order,
// pausing a fixed delay after every successful lookup that is followed by
// another request.
type Enricher struct {
	api     *API
	timeout time.Duration
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEnricher creates an enricher. A negative delay uses DefaultEnrichDelay.
func NewEnricher(api *API, delay time.Duration) *Enricher {
	if delay < 0 {
		delay = DefaultEnrichDelay
	}
	return &Enricher{
		api:     api,
		timeout: FeatureTimeout,
		delay:   delay,
		sleep:   sleepContext,
	}
}

// Results lazily enriches ids. Empty ids are skipped without a request.
// A failed lookup is logged and recorded as skipped; the sequence always
// continues unless ctx is done.
func (e *Enricher) Results(ctx context.Context, session *auth.Session, ids []string) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		pace := false
		for _, id := range ids {
			if id == "" {
				if !yield(Result{Err: types.ErrMissingTrackID}) {
					return
				}
				continue
			}

			if pace {
				if err := e.sleep(ctx, e.delay); err != nil {
					yield(Result{TrackID: id, Err: err})
					return
				}
			}

			features, err := e.lookup(ctx, session, id)
			pace = err == nil
			if err != nil {
				log.WithFields(log.Fields{"component": "enricher", "track": id, "kind": types.KindOf(err)}).
					Warnf("Skipping track: %v", err)
			}
			if !yield(Result{TrackID: id, Features: features, Err: err}) {
				return
			}
		}
	}
}

// Enrich collects Results into a slice aligned with ids.
func (e *Enricher) Enrich(ctx context.Context, session *auth.Session, ids []string) []Result {
	results := make([]Result, 0, len(ids))
	for r := range e.Results(ctx, session, ids) {
		results = append(results, r)
	}
	return results
}

func (e *Enricher) lookup(ctx context.Context, session *auth.Session, id string) (*types.AudioFeatures, error) {
	var features *types.AudioFeatures
	err := session.Do(ctx, func(ctx context.Context, token string) error {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		af, err := e.api.client(token).GetAudioFeatures(ctx, spotifyapi.ID(id))
		if err != nil {
			return translateError("audio-features/"+id, err)
		}
		if len(af) == 0 || af[0] == nil {
			return types.ErrFeaturesNotFound
		}
		features = ConvertFeatures(af[0])
		return nil
	})
	if err != nil {
		return nil, &types.TransientFetchError{ID: id, Err: err}
	}
	return features, nil
}

// ConvertFeatures copies the provider record into the document schema.
func ConvertFeatures(af *spotifyapi.AudioFeatures) *types.AudioFeatures {
	return &types.AudioFeatures{
		Acousticness:     float64(af.Acousticness),
		Danceability:     float64(af.Danceability),
		DurationMs:       int(af.Duration),
		Energy:           float64(af.Energy),
		Instrumentalness: float64(af.Instrumentalness),
		Key:              int(af.Key),
		Liveness:         float64(af.Liveness),
		Loudness:         float64(af.Loudness),
		Mode:             int(af.Mode),
		Speechiness:      float64(af.Speechiness),
		Tempo:            float64(af.Tempo),
		TimeSignature:    int(af.TimeSignature),
		Valence:          float64(af.Valence),
	}
}
