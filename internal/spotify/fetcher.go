package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/dshills/spotvec/internal/auth"
	"github.com/dshills/spotvec/pkg/types"
)

const (
	// PageSize is the provider's maximum page size for playlist listings.
	PageSize = 50

	// PageTimeout bounds a single page request.
	PageTimeout = 10 * time.Second
)

// PlaylistItem is one entry of a playlist's track listing. Track is nil for
// removed or unavailable entries.
type PlaylistItem struct {
	AddedAt string                `json:"added_at"`
	IsLocal bool                  `json:"is_local"`
	Track   *spotifyapi.FullTrack `json:"track"`
}

// page is the cursor envelope shared by the provider's paged endpoints.
type page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
	Total int     `json:"total"`
}

// Fetcher follows "next" links of paged listings.
type Fetcher struct {
	api  *API
	rest *resty.Client
}

// NewFetcher creates a fetcher for api. A nil httpClient uses resty's default.
// httpClient is copied, so its Timeout is left as the caller set it.
func NewFetcher(api *API, httpClient *http.Client) *Fetcher {
	var rc *resty.Client
	if httpClient != nil {
		hc := *httpClient
		rc = resty.NewWithClient(&hc)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(PageTimeout).
		SetHeader("Accept", "application/json")
	return &Fetcher{api: api, rest: rc}
}

// Pages lazily fetches the listing starting at startURL and yields one batch
// per page, in order. maxItems <= 0 means no cap; otherwise the final batch
// is truncated so at most maxItems items are yielded in total. Any error is
// yielded once and ends the sequence.
func Pages[T any](ctx context.Context, f *Fetcher, session *auth.Session, startURL string, maxItems int) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		next := startURL
		fetched := 0
		for next != "" {
			var p page[T]
			pageURL := next
			err := session.Do(ctx, func(ctx context.Context, token string) error {
				p = page[T]{}
				return f.getPage(ctx, pageURL, token, &p)
			})
			if err != nil {
				yield(nil, err)
				return
			}

			items := p.Items
			if maxItems > 0 && fetched+len(items) > maxItems {
				items = items[:maxItems-fetched]
			}
			fetched += len(items)

			log.WithFields(log.Fields{"component": "fetcher", "url": pageURL}).
				Debugf("Fetched page with %d items (%d total)", len(items), fetched)

			if len(items) > 0 && !yield(items, nil) {
				return
			}
			if maxItems > 0 && fetched >= maxItems {
				return
			}
			if p.Next == nil {
				return
			}
			next = *p.Next
		}
	}
}

// FetchAll drains Pages into a single slice.
func FetchAll[T any](ctx context.Context, f *Fetcher, session *auth.Session, startURL string, maxItems int) ([]T, error) {
	var all []T
	for batch, err := range Pages[T](ctx, f, session, startURL, maxItems) {
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
	return all, nil
}

// PlaylistTracks returns the items of a playlist, up to maxItems.
func (f *Fetcher) PlaylistTracks(ctx context.Context, session *auth.Session, playlistID string, maxItems int) ([]PlaylistItem, error) {
	if playlistID == "" {
		return nil, types.Invalid(types.ErrMissingPlaylistID)
	}
	start := fmt.Sprintf("%splaylists/%s/tracks?limit=%d", f.api.BaseURL(), url.PathEscape(playlistID), PageSize)
	return FetchAll[PlaylistItem](ctx, f, session, start, maxItems)
}

// UserPlaylists returns the current user's playlists, up to maxItems.
func (f *Fetcher) UserPlaylists(ctx context.Context, session *auth.Session, maxItems int) ([]spotifyapi.SimplePlaylist, error) {
	start := fmt.Sprintf("%sme/playlists?limit=%d", f.api.BaseURL(), PageSize)
	return FetchAll[spotifyapi.SimplePlaylist](ctx, f, session, start, maxItems)
}

func (f *Fetcher) getPage(ctx context.Context, pageURL, token string, out interface{}) error {
	resp, err := f.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(pageURL)
	if err != nil {
		if isTimeout(err) {
			return &types.TimeoutError{Op: "page fetch " + pageURL, Err: err}
		}
		return &types.FetchError{URL: pageURL, Err: err}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", pageURL, types.ErrUnauthorized)
	}
	if resp.IsError() {
		return &types.FetchError{
			URL:    pageURL,
			Status: resp.StatusCode(),
			Err:    errors.New(strings.TrimSpace(resp.String())),
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &types.FetchError{URL: pageURL, Status: resp.StatusCode(), Err: fmt.Errorf("decode page: %w", err)}
	}
	return nil
}
