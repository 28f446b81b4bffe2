package types

// Defaults applied to playlists produced by ingestion.
const (
	DefaultPlaylistOwner = "user"
	DefaultPlaylistMood  = "mixed"
	ProcessedTag         = "processed"
)

// Playlist is the indexed document for an ingested playlist.
type Playlist struct {
	ExternalID  string   `json:"spotifyId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Tags        []string `json:"tags"`
	Mood        string   `json:"mood"`
	SongCount   int      `json:"songCount"`
}

// Validate checks the invariants a playlist must hold before it is stored.
func (p *Playlist) Validate() error {
	if p.ExternalID == "" {
		return ErrMissingExternalID
	}
	if p.SongCount < 0 {
		return ErrInvalidSongCount
	}
	return nil
}

// PlaylistResult is a stored playlist with its store identifier.
type PlaylistResult struct {
	ID        string  `json:"id"`
	Certainty float64 `json:"certainty,omitempty"`
	Playlist
}

// GeneratedPlaylist is a themed selection with a generated description.
type GeneratedPlaylist struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Theme       string       `json:"theme"`
	Mood        string       `json:"mood"`
	Songs       []SongResult `json:"songs"`
}
