// Package document maps provider track and playlist records onto the
// indexed Song and Playlist documents. Mapping is pure: no I/O, and the
// same inputs always produce the same document.
package document

import (
	"fmt"
	"strings"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/dshills/spotvec/pkg/types"
)

// MaxLyricsInDescription caps how much of the lyrics feed the song description.
const MaxLyricsInDescription = 500

// SongFromTrack builds a Song document. features may be nil for tracks the
// provider has no audio analysis for.
func SongFromTrack(track *spotifyapi.FullTrack, features *types.AudioFeatures, genres []string, lyrics string) (types.Song, error) {
	if err := CheckTrack(track); err != nil {
		return types.Song{}, err
	}

	artists := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}

	song := types.Song{
		ExternalID:  string(track.ID),
		Title:       track.Name,
		Artist:      strings.Join(artists, ", "),
		Album:       track.Album.Name,
		Genres:      append([]string{}, genres...),
		ReleaseDate: ReleaseDate(track.Album.ReleaseDate, track.Album.ReleaseDatePrecision),
		Popularity:  clampPopularity(int(track.Popularity)),
		Lyrics:      lyrics,
	}
	if features != nil {
		song.AudioFeatures = *features
	}
	song.Description = SongDescription(song)

	if err := song.Validate(); err != nil {
		return types.Song{}, types.Invalid(err)
	}
	return song, nil
}

// CheckTrack reports whether a track record can be mapped at all.
func CheckTrack(track *spotifyapi.FullTrack) error {
	switch {
	case track == nil:
		return types.Invalid(types.ErrMalformedTrack)
	case track.ID == "":
		return types.Invalid(types.ErrMissingTrackID)
	case track.Name == "":
		return types.Invalid(fmt.Errorf("%w: track %s has no name", types.ErrMalformedTrack, track.ID))
	}
	return nil
}

// SongDescription joins title, artist, album, genres and the start of the
// lyrics with single spaces, dropping empty parts.
func SongDescription(s types.Song) string {
	lyrics := s.Lyrics
	if r := []rune(lyrics); len(r) > MaxLyricsInDescription {
		lyrics = string(r[:MaxLyricsInDescription])
	}

	parts := []string{s.Title, s.Artist, s.Album, strings.Join(s.Genres, " "), lyrics}
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// NewPlaylist builds the Playlist document stored after an ingestion run.
// songCount is the number of songs that run actually stored.
func NewPlaylist(externalID, name string, songCount int) (types.Playlist, error) {
	p := types.Playlist{
		ExternalID:  externalID,
		Name:        name,
		Description: PlaylistDescription(songCount),
		Owner:       types.DefaultPlaylistOwner,
		Tags:        []string{types.ProcessedTag},
		Mood:        types.DefaultPlaylistMood,
		SongCount:   songCount,
	}
	if err := p.Validate(); err != nil {
		return types.Playlist{}, types.Invalid(err)
	}
	return p, nil
}

func PlaylistDescription(songCount int) string {
	return fmt.Sprintf("Processed playlist with %d songs", songCount)
}

// ReleaseDate parses a provider release date at its stated precision
// ("year", "month" or "day"). Unparseable dates yield the zero time.
func ReleaseDate(value, precision string) time.Time {
	layouts := map[string]string{
		"year":  "2006",
		"month": "2006-01",
		"day":   "2006-01-02",
	}
	if layout, ok := layouts[precision]; ok {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	// precision missing or wrong: try the most specific layout first
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func clampPopularity(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
