package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/dshills/spotvec/internal/config"
	"github.com/dshills/spotvec/pkg/types"
)

// TokenTimeout bounds every token endpoint call.
const TokenTimeout = 10 * time.Second

// Scopes requested by the authorize URL.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// Manager exchanges authorization codes and refresh tokens for access
// credentials. It holds no session state.
type Manager struct {
	cfg        config.SpotifyConfig
	oauth      *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
}

// NewManager creates a token manager for the configured client. A nil
// httpClient uses a client with TokenTimeout.
func NewManager(cfg config.SpotifyConfig, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: TokenTimeout}
	}
	return &Manager{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint:     endpoint(cfg.AccountsURL),
		},
		httpClient: httpClient,
		timeout:    TokenTimeout,
	}
}

func endpoint(accountsURL string) oauth2.Endpoint {
	ep := oauth2.Endpoint{
		AuthURL:  spotifyauth.AuthURL,
		TokenURL: spotifyauth.TokenURL,
		// client id and secret travel in the form body
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if accountsURL != "" && accountsURL != config.DefaultAccountsURL {
		base := strings.TrimRight(accountsURL, "/")
		ep.AuthURL = base + "/authorize"
		ep.TokenURL = base + "/api/token"
	}
	return ep
}

// AuthURL returns the provider authorize URL for the given state.
func (m *Manager) AuthURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a credential.
func (m *Manager) Exchange(ctx context.Context, code string) (types.AccessCredential, error) {
	if code == "" {
		return types.AccessCredential{}, types.Invalid(types.ErrMissingCode)
	}
	if err := m.cfg.RequireExchange(); err != nil {
		return types.AccessCredential{}, err
	}

	ctx, cancel := m.tokenContext(ctx)
	defer cancel()

	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		err = m.classify("token exchange", err)
		log.WithFields(log.Fields{"component": "auth", "kind": types.KindOf(err)}).Warnf("Token exchange failed: %v", err)
		return types.AccessCredential{}, err
	}

	log.WithField("component", "auth").Debug("Token exchange succeeded")
	return credentialFromToken(tok, ""), nil
}

// Refresh trades a refresh token for a new credential. When the provider
// omits a new refresh token the old one is kept on the returned credential.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (types.AccessCredential, error) {
	if refreshToken == "" {
		return types.AccessCredential{}, types.Invalid(types.ErrMissingRefreshToken)
	}
	if err := m.cfg.RequireRefresh(); err != nil {
		return types.AccessCredential{}, err
	}

	ctx, cancel := m.tokenContext(ctx)
	defer cancel()

	tok, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		err = m.classify("token refresh", err)
		log.WithFields(log.Fields{"component": "auth", "kind": types.KindOf(err)}).Warnf("Token refresh failed: %v", err)
		return types.AccessCredential{}, err
	}

	log.WithField("component", "auth").Debug("Token refresh succeeded")
	return credentialFromToken(tok, refreshToken), nil
}

func (m *Manager) tokenContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	return context.WithTimeout(ctx, m.timeout)
}

// classify maps token endpoint failures onto the error taxonomy.
func (m *Manager) classify(op string, err error) error {
	if isTimeout(err) {
		return &types.TimeoutError{Op: op, Err: err}
	}

	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return &types.FetchError{URL: m.oauth.Endpoint.TokenURL, Err: err}
	}

	authErr := &types.AuthError{
		Cause:       types.ErrProviderRejected,
		ProviderErr: re.ErrorCode,
		Detail:      re.ErrorDescription,
	}
	if re.Response != nil {
		authErr.Status = re.Response.StatusCode
	}

	switch re.ErrorCode {
	case "invalid_client":
		authErr.Cause = types.ErrInvalidClient
	case "redirect_uri_mismatch":
		authErr.Cause = types.ErrRedirectMismatch
	case "invalid_grant":
		// the provider reports a redirect mismatch as invalid_grant
		if strings.Contains(strings.ToLower(re.ErrorDescription), "redirect") {
			authErr.Cause = types.ErrRedirectMismatch
		} else {
			authErr.Cause = types.ErrInvalidGrant
		}
	}
	return authErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func credentialFromToken(tok *oauth2.Token, previousRefresh string) types.AccessCredential {
	cred := types.AccessCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = previousRefresh
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = types.ParseScope(scope)
	}
	return cred
}
