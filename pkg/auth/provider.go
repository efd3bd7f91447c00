// Package auth provides the OAuth credentials used to call the Google Docs and
// Drive APIs. The provider is constructed once and passed to its consumers;
// refreshing returns a new token instead of mutating shared client state.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/config"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/db"

	"github.com/tliron/commonlog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	docs "google.golang.org/api/docs/v1"
)

var log = commonlog.GetLogger("docmerge.auth")

// ErrNotAuthorized is returned until an authorization code has been exchanged.
var ErrNotAuthorized = errors.New("not authorized: complete the OAuth consent flow first")

// Scopes requested from the user.
var Scopes = []string{docs.DocumentsScope, docs.DriveScope}

// Provider hands out valid tokens for one account.
type Provider struct {
	oauth   *oauth2.Config
	store   db.ITokenStore
	account string
}

// NewProvider creates a provider for the Google OAuth endpoint.
func NewProvider(cfg config.OAuth, store db.ITokenStore) *Provider {
	return NewProviderWithEndpoint(cfg, store, google.Endpoint)
}

// NewProviderWithEndpoint creates a provider against an explicit OAuth endpoint.
func NewProviderWithEndpoint(cfg config.OAuth, store db.ITokenStore, endpoint oauth2.Endpoint) *Provider {
	account := cfg.Account
	if account == "" {
		account = "default"
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		store:   store,
		account: account,
	}
}

// AuthCodeURL returns the consent page URL. Offline access with a forced
// prompt makes Google issue a refresh token on every consent.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := p.store.SaveToken(p.account, token); err != nil {
		return nil, err
	}
	log.Infof("stored token for account %s", p.account)
	return token, nil
}

// Token returns a valid token, refreshing the stored one if it has expired.
func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	token, err := p.store.LoadToken(p.account)
	if err != nil {
		if errors.Is(err, db.ErrTokenNotFound) {
			return nil, ErrNotAuthorized
		}
		return nil, err
	}
	if token.Valid() {
		return token, nil
	}
	return p.Refresh(ctx, token)
}

// Refresh obtains a fresh token using token's refresh token and stores it.
func (p *Provider) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token.RefreshToken == "" {
		return nil, ErrNotAuthorized
	}

	expired := *token
	expired.AccessToken = ""
	fresh, err := p.oauth.TokenSource(ctx, &expired).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	if err := p.store.SaveToken(p.account, fresh); err != nil {
		return nil, err
	}
	log.Debugf("refreshed token for account %s", p.account)
	return fresh, nil
}

// TokenSource adapts the provider to oauth2.TokenSource for API clients.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, providerSource{ctx: ctx, provider: p})
}

type providerSource struct {
	ctx      context.Context
	provider *Provider
}

func (s providerSource) Token() (*oauth2.Token, error) {
	return s.provider.Token(s.ctx)
}
