package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/config"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memoryTokens struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

func (m *memoryTokens) LoadToken(account string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[account]
	if !ok {
		return nil, db.ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

func (m *memoryTokens) SaveToken(account string, token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]*oauth2.Token{}
	}
	copied := *token
	m.tokens[account] = &copied
	return nil
}

// tokenServer answers every token request with a new access token and records the grant types.
func tokenServer(t *testing.T, grants *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		*grants = append(*grants, r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-" + r.Form.Get("grant_type"),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server, store db.ITokenStore) *Provider {
	return NewProviderWithEndpoint(config.OAuth{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/auth/callback",
	}, store, oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"})
}

func TestAuthCodeURL(t *testing.T) {
	var grants []string
	p := newTestProvider(tokenServer(t, &grants), &memoryTokens{})

	u, err := url.Parse(p.AuthCodeURL("state-1"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "force", q.Get("approval_prompt"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "auth/documents")
}

func TestToken_NotAuthorized(t *testing.T) {
	var grants []string
	p := newTestProvider(tokenServer(t, &grants), &memoryTokens{})

	_, err := p.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Empty(t, grants)
}

func TestExchange_StoresToken(t *testing.T) {
	var grants []string
	store := &memoryTokens{}
	p := newTestProvider(tokenServer(t, &grants), store)

	token, err := p.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "access-authorization_code", token.AccessToken)

	stored, err := store.LoadToken("default")
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, stored.AccessToken)

	got, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, got.AccessToken)
	assert.Equal(t, []string{"authorization_code"}, grants)
}

func TestToken_RefreshesExpired(t *testing.T) {
	var grants []string
	store := &memoryTokens{}
	require.NoError(t, store.SaveToken("default", &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}))
	p := newTestProvider(tokenServer(t, &grants), store)

	token, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-refresh_token", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)

	stored, err := store.LoadToken("default")
	require.NoError(t, err)
	assert.Equal(t, "access-refresh_token", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	assert.Equal(t, []string{"refresh_token"}, grants)
}

func TestRefresh_WithoutRefreshToken(t *testing.T) {
	var grants []string
	p := newTestProvider(tokenServer(t, &grants), &memoryTokens{})

	_, err := p.Refresh(context.Background(), &oauth2.Token{AccessToken: "stale"})
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Empty(t, grants)
}

func TestTokenSource(t *testing.T) {
	var grants []string
	store := &memoryTokens{}
	require.NoError(t, store.SaveToken("default", &oauth2.Token{
		AccessToken: "valid",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))
	p := newTestProvider(tokenServer(t, &grants), store)

	token, err := p.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "valid", token.AccessToken)
	assert.Empty(t, grants)
}
