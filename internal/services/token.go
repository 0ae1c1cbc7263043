package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// TokenSource yields client-credentials tokens. [*SpotifyClient] implements it.
type TokenSource interface {
	ClientCredentialsToken(ctx context.Context) (*oauth2.Token, error)
}

// TokenProvider holds the process token used for search.
//
// Readers may call [TokenProvider.AccessToken] from any goroutine.
type TokenProvider struct {
	source  TokenSource
	logger  *log.Logger
	current atomic.Pointer[oauth2.Token]

	// RetryInterval is the wait after a failed fetch in [TokenProvider.Run].
	RetryInterval time.Duration
}

// NewTokenProvider creates a provider with no token yet.
func NewTokenProvider(source TokenSource, logger *log.Logger) *TokenProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &TokenProvider{source: source, logger: logger, RetryInterval: 30 * time.Second}
}

// Fetch obtains a new token and replaces the current one. On failure the old token is kept.
func (p *TokenProvider) Fetch(ctx context.Context) error {
	token, err := p.source.ClientCredentialsToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch client credentials token: %w", err)
	}
	p.current.Store(token)
	p.logger.Debug("process token updated", "expiry", token.Expiry)
	return nil
}

// Set replaces the current token.
func (p *TokenProvider) Set(token *oauth2.Token) {
	p.current.Store(token)
}

// Token returns the current token or nil.
func (p *TokenProvider) Token() *oauth2.Token {
	return p.current.Load()
}

// AccessToken returns the current access token, or "" when none was fetched.
func (p *TokenProvider) AccessToken() string {
	if t := p.current.Load(); t != nil {
		return t.AccessToken
	}
	return ""
}

// Run refetches the token leeway before it expires until ctx is done.
func (p *TokenProvider) Run(ctx context.Context, leeway time.Duration) {
	timer := time.NewTimer(p.nextWait(leeway))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := p.RetryInterval
		if err := p.Fetch(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("token refresh failed", "error", err, "retry_in", wait)
		} else {
			wait = p.nextWait(leeway)
		}
		timer.Reset(wait)
	}
}

func (p *TokenProvider) nextWait(leeway time.Duration) time.Duration {
	t := p.current.Load()
	switch {
	case t == nil:
		return 0
	case t.Expiry.IsZero():
		return p.RetryInterval
	}
	return max(time.Until(t.Expiry)-leeway, p.RetryInterval)
}
