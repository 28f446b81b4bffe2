package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dshills/spotvec/pkg/types"
)

// Renewer obtains a new credential from a refresh token. *Manager satisfies it.
type Renewer interface {
	Refresh(ctx context.Context, refreshToken string) (types.AccessCredential, error)
}

// Session wraps a caller-owned credential for authenticated calls. Every
// call through Do gets at most one renewal: a 401 renews and retries the same
// call once, a second 401 is a SessionExpiredError. A failed renewal clears
// both tokens.
type Session struct {
	mu      sync.Mutex
	cred    types.AccessCredential
	renewer Renewer
	now     func() time.Time
}

// NewSession creates a session that can renew through renewer. renewer may
// be nil, in which case any 401 expires the session.
func NewSession(cred types.AccessCredential, renewer Renewer) *Session {
	return &Session{cred: cred, renewer: renewer, now: time.Now}
}

// BearerSession creates a non-renewable session from a bare access token.
func BearerSession(accessToken string) *Session {
	return NewSession(types.AccessCredential{AccessToken: accessToken}, nil)
}

// Credential returns the current credential, including any renewal.
func (s *Session) Credential() types.AccessCredential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// Token returns a usable access token, renewing first when the credential
// is known to be expired.
func (s *Session) Token(ctx context.Context) (string, error) {
	token, _, err := s.token(ctx)
	return token, err
}

// token also reports whether it had to renew.
func (s *Session) token(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	cred := s.cred
	s.mu.Unlock()

	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return "", false, &types.SessionExpiredError{Err: types.ErrMissingCredential}
	}
	if cred.Fresh(s.now()) {
		return cred.AccessToken, false, nil
	}

	token, err := s.renew(ctx, cred.AccessToken)
	if err != nil {
		return "", true, &types.SessionExpiredError{Err: err}
	}
	return token, true, nil
}

// Do runs fn with an access token. fn must wrap types.ErrUnauthorized when
// the provider answers 401. A token renewed on expiry counts as the call's
// one renewal, so a 401 with it is fatal.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	token, renewed, err := s.token(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, token)
	if !errors.Is(err, types.ErrUnauthorized) {
		return err
	}
	if renewed {
		s.invalidate()
		return &types.SessionExpiredError{Err: err}
	}

	log.WithField("component", "auth").Debug("Access token rejected, renewing once")
	token, rerr := s.renew(ctx, token)
	if rerr != nil {
		return &types.SessionExpiredError{Err: rerr}
	}

	err = fn(ctx, token)
	if errors.Is(err, types.ErrUnauthorized) {
		s.invalidate()
		return &types.SessionExpiredError{Err: err}
	}
	return err
}

// renew replaces the stale token. Concurrent callers holding the same stale
// token share one renewal.
func (s *Session) renew(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred.AccessToken != "" && s.cred.AccessToken != stale {
		return s.cred.AccessToken, nil
	}
	if s.renewer == nil || s.cred.RefreshToken == "" {
		s.cred = types.AccessCredential{}
		return "", types.ErrMissingRefreshToken
	}

	cred, err := s.renewer.Refresh(ctx, s.cred.RefreshToken)
	if err != nil {
		s.cred = types.AccessCredential{}
		return "", err
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = s.cred.RefreshToken
	}
	s.cred = cred
	return cred.AccessToken, nil
}

func (s *Session) invalidate() {
	s.mu.Lock()
	s.cred = types.AccessCredential{}
	s.mu.Unlock()
}
