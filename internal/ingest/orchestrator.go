package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	log "github.com/sirupsen/logrus"
	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/dshills/spotvec/internal/auth"
	"github.com/dshills/spotvec/internal/document"
	"github.com/dshills/spotvec/internal/spotify"
	"github.com/dshills/spotvec/pkg/types"
)

// MaxPlaylistTracks caps how many tracks are fetched when the caller does
// not supply them.
const MaxPlaylistTracks = 10000

// TrackSource lists a playlist's tracks.
type TrackSource interface {
	PlaylistTracks(ctx context.Context, session *auth.Session, playlistID string, maxItems int) ([]spotify.PlaylistItem, error)
}

// FeatureSource enriches track ids in order.
type FeatureSource interface {
	Results(ctx context.Context, session *auth.Session, ids []string) iter.Seq[spotify.Result]
}

// Sink stores documents.
type Sink interface {
	Upsert(ctx context.Context, song types.Song) (string, error)
	UpsertPlaylist(ctx context.Context, playlist types.Playlist) (string, error)
}

// Request is one process-playlist call.
type Request struct {
	PlaylistID string
	Name       string
	// Items is the track batch. When empty the tracks are fetched.
	Items   []spotify.PlaylistItem
	Session *auth.Session
}

// Orchestrator runs the fetch, enrich, map and store pipeline.
type Orchestrator struct {
	tracks   TrackSource
	features FeatureSource
	sink     Sink
	locks    Locks
}

// New creates an orchestrator. tracks may be nil when callers always
// supply the track batch.
func New(tracks TrackSource, features FeatureSource, sink Sink) *Orchestrator {
	return &Orchestrator{tracks: tracks, features: features, sink: sink}
}

// ProcessPlaylist ingests one playlist and reports how many of its tracks
// were stored.
func (o *Orchestrator) ProcessPlaylist(ctx context.Context, req Request) (*types.IngestSummary, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	lock := o.locks.For(req.PlaylistID)
	if !lock.TryAcquire() {
		return nil, types.Invalid(fmt.Errorf("%w: %s", types.ErrIngestionInProgress, req.PlaylistID))
	}
	defer lock.Release()

	logger := log.WithFields(log.Fields{"component": "ingest", "playlist": req.PlaylistID})
	start := time.Now()

	items := req.Items
	if len(items) == 0 {
		fetched, err := o.tracks.PlaylistTracks(ctx, req.Session, req.PlaylistID, MaxPlaylistTracks)
		if err != nil {
			logger.Errorf("Failed to fetch playlist tracks: %v", err)
			return nil, err
		}
		items = fetched
	}

	summary := &types.IngestSummary{TotalCount: len(items)}

	// tracks without an id never reach the network
	tracks := make([]*spotifyapi.FullTrack, 0, len(items))
	ids := make([]string, 0, len(items))
	for i, item := range items {
		if err := document.CheckTrack(item.Track); err != nil {
			logger.WithField("position", i).Debugf("Skipping track: %v", err)
			summary.Skipped = append(summary.Skipped, trackLabel(item, i))
			continue
		}
		tracks = append(tracks, item.Track)
		ids = append(ids, string(item.Track.ID))
	}

	i := 0
	for result := range o.features.Results(ctx, req.Session, ids) {
		track := tracks[i]
		i++

		if result.Err != nil {
			if expired := sessionExpired(result.Err); expired != nil {
				logger.Errorf("Session expired during enrichment: %v", expired)
				return nil, expired
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			summary.Skipped = append(summary.Skipped, string(track.ID))
			continue
		}

		song, err := document.SongFromTrack(track, result.Features, nil, "")
		if err != nil {
			logger.WithField("track", track.ID).Warnf("Skipping unmappable track: %v", err)
			summary.Skipped = append(summary.Skipped, string(track.ID))
			continue
		}

		if _, err := o.sink.Upsert(ctx, song); err != nil {
			logger.WithField("track", track.ID).Warnf("Failed to store song: %v", err)
			summary.Skipped = append(summary.Skipped, string(track.ID))
			continue
		}
		summary.ProcessedCount++
		logger.WithField("track", track.ID).Debug("Song stored")
	}

	playlist, err := document.NewPlaylist(req.PlaylistID, req.Name, summary.ProcessedCount)
	if err != nil {
		return nil, err
	}
	id, err := o.sink.UpsertPlaylist(ctx, playlist)
	if err != nil {
		logger.Errorf("Failed to store playlist: %v", err)
		return nil, err
	}
	summary.StoredPlaylistID = id

	logger.WithFields(log.Fields{
		"processed": summary.ProcessedCount,
		"total":     summary.TotalCount,
		"duration":  time.Since(start).Round(time.Millisecond),
	}).Info("Playlist processed")
	return summary, nil
}

func (o *Orchestrator) validate(req Request) error {
	switch {
	case req.PlaylistID == "":
		return types.Invalid(types.ErrMissingPlaylistID)
	case req.Name == "":
		return types.Invalid(types.ErrMissingPlaylistName)
	case req.Session == nil:
		return types.Invalid(types.ErrMissingCredential)
	case len(req.Items) == 0 && o.tracks == nil:
		return types.Invalid(types.ErrMissingTracks)
	}
	return nil
}

func sessionExpired(err error) *types.SessionExpiredError {
	var expired *types.SessionExpiredError
	if errors.As(err, &expired) {
		return expired
	}
	return nil
}

func trackLabel(item spotify.PlaylistItem, position int) string {
	if item.Track != nil && item.Track.ID != "" {
		return string(item.Track.ID)
	}
	return fmt.Sprintf("#%d", position)
}
