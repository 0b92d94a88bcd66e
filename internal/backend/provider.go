// Package backend owns the connection to the hosted session backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned when the provider has no backend URL.
var ErrNotConfigured = errors.New("backend not configured")

// Provider lazily creates the backend client on first use and hands out the
// same client for the life of the process. The client is owned by the
// Provider; callers must not close it.
type Provider struct {
	url    string
	logger *slog.Logger

	once   sync.Once
	client *redis.Client
	err    error

	// dial builds the client. Replaced in tests.
	dial func(opts *redis.Options) *redis.Client
}

// NewProvider returns a Provider for the given redis:// or rediss:// URL.
// No connection is made until Redis is first called.
func NewProvider(url string, logger *slog.Logger) *Provider {
	return &Provider{
		url:    url,
		logger: logger.With("component", "backend"),
		dial:   redis.NewClient,
	}
}

// NewProviderWithClient wraps an existing client. Used by tests and by
// callers that build their own client.
func NewProviderWithClient(client *redis.Client, logger *slog.Logger) *Provider {
	p := &Provider{logger: logger.With("component", "backend"), client: client}
	p.once.Do(func() {})
	return p
}

// Redis returns the shared client, creating it on the first call.
func (p *Provider) Redis() (*redis.Client, error) {
	p.once.Do(func() {
		if p.url == "" {
			p.err = ErrNotConfigured
			return
		}
		opts, err := redis.ParseURL(p.url)
		if err != nil {
			p.err = fmt.Errorf("parse backend url: %w", err)
			return
		}
		p.client = p.dial(opts)
		p.logger.Info("backend client created", "addr", opts.Addr, "db", opts.DB)
	})
	return p.client, p.err
}

// Ping checks that the backend answers.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.Redis()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Close releases the client if it was created.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
