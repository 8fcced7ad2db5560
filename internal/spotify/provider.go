package spotify

import (
	"context"
	"fmt"

	"github.com/tunelog-labs/tunelog/internal/auth"
	"github.com/tunelog-labs/tunelog/internal/catalog"
)

// Provider serves search and recent plays through the linked Spotify
// account. It authenticates lazily on each call, so a token cached
// after startup is picked up without a restart.
type Provider struct {
	auth *auth.Authenticator
}

// NewProvider creates a Provider over the authenticator.
func NewProvider(a *auth.Authenticator) *Provider {
	return &Provider{auth: a}
}

func (p *Provider) client(ctx context.Context) (*Client, error) {
	httpClient, err := p.auth.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating spotify client: %w", err)
	}
	return New(httpClient), nil
}

func (p *Provider) Search(ctx context.Context, query string, limit int) ([]catalog.Song, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, query, limit)
}

func (p *Provider) RecentlyPlayed(ctx context.Context) ([]catalog.RecentSong, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.RecentlyPlayed(ctx)
}

var (
	_ catalog.Searcher     = (*Provider)(nil)
	_ catalog.RecentSource = (*Provider)(nil)
)
