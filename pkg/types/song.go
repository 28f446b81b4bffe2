package types

import "time"

// AudioFeatures holds the provider's acoustic descriptors for a track.
// JSON names follow the provider so stored documents stay queryable by the
// same field names.
type AudioFeatures struct {
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	DurationMs       int     `json:"duration_ms"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Key              int     `json:"key"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	Valence          float64 `json:"valence"`
}

// Song is the indexed document for a single track.
type Song struct {
	ExternalID    string        `json:"spotifyId"`
	Title         string        `json:"title"`
	Artist        string        `json:"artist"`
	Album         string        `json:"album"`
	Genres        []string      `json:"genre"`
	AudioFeatures AudioFeatures `json:"audioFeatures"`
	ReleaseDate   time.Time     `json:"releaseDate"`
	Popularity    int           `json:"popularity"`
	Lyrics        string        `json:"lyrics"`
	Description   string        `json:"description"`
}

// Validate checks the invariants a song must hold before it is stored.
func (s *Song) Validate() error {
	if s.ExternalID == "" {
		return ErrMissingExternalID
	}
	if s.Popularity < 0 || s.Popularity > 100 {
		return ErrInvalidPopularity
	}
	return nil
}

// SongResult is a stored song with its store identifier and, for ranked
// queries, the certainty of the match.
type SongResult struct {
	ID        string  `json:"id"`
	Certainty float64 `json:"certainty,omitempty"`
	Song
}
