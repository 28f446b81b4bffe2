package types

import (
	"errors"
	"fmt"
	"strings"
)

// Machine-readable error kinds surfaced at the service boundary.
const (
	KindConfiguration  = "configuration"
	KindAuth           = "auth"
	KindSessionExpired = "session_expired"
	KindTransientFetch = "transient_fetch"
	KindFetch          = "fetch"
	KindStore          = "store"
	KindTimeout        = "timeout"
	KindValidation     = "validation"
	KindInternal       = "internal"
)

// Auth sub-causes. An AuthError matches exactly one of these with errors.Is.
var (
	ErrInvalidClient    = errors.New("invalid client credentials")
	ErrInvalidGrant     = errors.New("authorization code or refresh token is invalid, expired or already used")
	ErrRedirectMismatch = errors.New("redirect uri mismatch")
	ErrProviderRejected = errors.New("token request rejected by provider")
)

// ErrUnauthorized marks a 401 response from the external API. It is the only
// signal the authenticated-call wrapper reacts to.
var ErrUnauthorized = errors.New("unauthorized")

// Validation failures
var (
	ErrMissingCode         = errors.New("authorization code is required")
	ErrMissingRefreshToken = errors.New("refresh token is required")
	ErrMissingPlaylistID   = errors.New("playlist id is required")
	ErrMissingPlaylistName = errors.New("playlist name is required")
	ErrMissingCredential   = errors.New("access token is required")
	ErrMissingTracks       = errors.New("track batch is required")
	ErrMissingTrackID      = errors.New("track has no identifier")
	ErrMalformedTrack      = errors.New("track record is malformed")
	ErrFeaturesNotFound    = errors.New("no audio features returned")
	ErrMissingExternalID   = errors.New("external id is required")
	ErrIngestionInProgress = errors.New("playlist ingestion already in progress")
	ErrEmptyQuery          = errors.New("query cannot be empty")
	ErrInvalidPopularity   = errors.New("popularity must be between 0 and 100")
	ErrInvalidSongCount    = errors.New("song count cannot be negative")
)

// Kinded is implemented by every error in the taxonomy.
type Kinded interface {
	error
	Kind() string
}

// KindOf returns the machine-readable kind of err, or KindInternal when err
// does not belong to the taxonomy.
func KindOf(err error) string {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// ConfigurationError reports required settings that are missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

func (e *ConfigurationError) Kind() string { return KindConfiguration }

// AuthError reports a token exchange or refresh the provider rejected.
type AuthError struct {
	Cause       error // one of ErrInvalidClient, ErrInvalidGrant, ErrRedirectMismatch, ErrProviderRejected
	Status      int
	ProviderErr string
	Detail      string
}

func (e *AuthError) Error() string {
	msg := e.Cause.Error()
	if e.ProviderErr != "" {
		msg += " (" + e.ProviderErr + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *AuthError) Kind() string { return KindAuth }

func (e *AuthError) Unwrap() error { return e.Cause }

// SessionExpiredError means a 401 persisted after one renewal attempt.
// The caller must re-authenticate.
type SessionExpiredError struct {
	URL string
	Err error
}

func (e *SessionExpiredError) Error() string {
	msg := "session expired, re-authentication required"
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionExpiredError) Kind() string { return KindSessionExpired }

func (e *SessionExpiredError) Unwrap() error { return e.Err }

// TransientFetchError is a per-item failure that is logged and skipped.
type TransientFetchError struct {
	ID  string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.ID, e.Err)
}

func (e *TransientFetchError) Kind() string { return KindTransientFetch }

func (e *TransientFetchError) Unwrap() error { return e.Err }

// FetchError is a fatal non-auth failure while fetching a page.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Kind() string { return KindFetch }

func (e *FetchError) Unwrap() error { return e.Err }

// StoreError reports a failed vector store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Kind() string { return KindStore }

func (e *StoreError) Unwrap() error { return e.Err }

// TimeoutError is returned when an outbound call exceeds its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Kind() string { return KindTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// ValidationError reports missing or invalid caller input.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Kind() string { return KindValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps a validation sentinel.
func Invalid(err error) error {
	return &ValidationError{Err: err}
}
