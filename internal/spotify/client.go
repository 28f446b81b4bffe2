// Package spotify talks to the provider's Web API: cursor-paged listings,
// per-track audio feature lookups and token validation. Every call goes
// through an auth.Session so a rejected token is renewed once and retried.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/dshills/spotvec/pkg/types"
)

// API builds bearer-authenticated provider clients against one base URL.
type API struct {
	baseURL   string
	transport http.RoundTripper
}

// NewAPI creates an API for baseURL (with trailing slash). A nil transport
// uses http.DefaultTransport.
func NewAPI(baseURL string, transport http.RoundTripper) *API {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &API{baseURL: baseURL, transport: transport}
}

// BaseURL returns the API root, always ending in a slash.
func (a *API) BaseURL() string {
	return a.baseURL
}

func (a *API) client(token string) *spotifyapi.Client {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   unauthorizedTransport{base: a.transport},
		},
	}
	return spotifyapi.New(httpClient, spotifyapi.WithBaseURL(a.baseURL))
}

// unauthorizedTransport turns a 401 response into an error wrapping
// types.ErrUnauthorized, whatever the body looks like.
type unauthorizedTransport struct {
	base http.RoundTripper
}

func (t unauthorizedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	_ = resp.Body.Close()
	return nil, fmt.Errorf("%s %s: %w: %s", req.Method, req.URL.Path, types.ErrUnauthorized, strings.TrimSpace(string(body)))
}

// translateError maps client errors onto the taxonomy, keeping 401s
// recognisable for the session wrapper.
func translateError(op string, err error) error {
	if errors.Is(err, types.ErrUnauthorized) {
		return err
	}
	if isTimeout(err) {
		return &types.TimeoutError{Op: op, Err: err}
	}
	var se spotifyapi.Error
	if errors.As(err, &se) {
		return &types.FetchError{URL: op, Status: se.Status, Err: errors.New(se.Message)}
	}
	return &types.FetchError{URL: op, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
