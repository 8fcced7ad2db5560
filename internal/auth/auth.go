package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// ErrNoToken means no Spotify account is linked yet.
var ErrNoToken = errors.New("no cached token: visit /auth/login first")

// Authenticator drives the authorization code flow and hands out HTTP
// clients backed by the cached token. The callback endpoint lives on
// the main API server, so this type only builds URLs and exchanges
// codes; it never listens itself.
type Authenticator struct {
	auth  *spotifyauth.Authenticator
	cache *TokenCache
}

// New creates an Authenticator for the given application credentials.
func New(clientID, clientSecret, redirectURL string, cache *TokenCache) *Authenticator {
	return &Authenticator{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(clientID),
			spotifyauth.WithClientSecret(clientSecret),
			spotifyauth.WithRedirectURL(redirectURL),
			spotifyauth.WithScopes(
				spotifyauth.ScopeUserReadRecentlyPlayed,
				spotifyauth.ScopeUserReadPrivate,
			),
		),
		cache: cache,
	}
}

// AuthURL returns the Spotify consent page URL for the given state.
func (a *Authenticator) AuthURL(state string) string {
	return a.auth.AuthURL(state)
}

// Exchange trades the authorization code carried by the callback
// request for a token and caches it.
func (a *Authenticator) Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	token, err := a.auth.Token(ctx, state, r)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}
	if err := a.cache.Save(token); err != nil {
		return nil, fmt.Errorf("caching token: %w", err)
	}
	return token, nil
}

// HTTPClient returns a client that attaches the cached token to every
// request, refreshing it when expired. Returns ErrNoToken when no
// account is linked.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}
	if token == nil {
		return nil, ErrNoToken
	}
	return a.auth.Client(ctx, token), nil
}

// Authenticated reports whether a token is cached.
func (a *Authenticator) Authenticated() bool {
	token, err := a.cache.Load()
	return err == nil && token != nil
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}

// GenerateState creates a random state value for the OAuth flow.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
