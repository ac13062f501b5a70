package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"neurochat/internal/logger"
)

const (
	// DefaultMaxRetries is the number of extra attempts for transient failures.
	DefaultMaxRetries = 2
	// DefaultRetryInitialInterval is the first backoff delay.
	DefaultRetryInitialInterval = time.Second
	// DefaultRetryMaxInterval caps a single backoff delay.
	DefaultRetryMaxInterval = 10 * time.Second
)

// KeySource resolves the credential for a provider.
type KeySource interface {
	APIKey(provider string) (string, error)
}

// Target selects the provider, model and timeout for a call.
type Target struct {
	Provider string
	Model    string
	Timeout  time.Duration
}

// Gateway sends requests through cached provider clients, retrying transient failures.
type Gateway struct {
	cache           *Cache
	keys            KeySource
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRetries sets the retry budget and backoff bounds.
func WithRetries(maxRetries uint64, initial, maxInterval time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.maxRetries = maxRetries
		g.initialInterval = initial
		g.maxInterval = maxInterval
	}
}

// NewGateway creates a gateway over cache, resolving credentials through keys.
func NewGateway(cache *Cache, keys KeySource, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		cache:           cache,
		keys:            keys,
		maxRetries:      DefaultMaxRetries,
		initialInterval: DefaultRetryInitialInterval,
		maxInterval:     DefaultRetryMaxInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Cache returns the client cache used by the gateway.
func (g *Gateway) Cache() *Cache {
	return g.cache
}

func (g *Gateway) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.initialInterval
	b.MaxInterval = g.maxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, g.maxRetries), ctx)
}

// Send performs one completion against target. Cancellation of ctx is returned as is
// and never retried.
func (g *Gateway) Send(ctx context.Context, target Target, req Request) (*Response, error) {
	apiKey, err := g.keys.APIKey(target.Provider)
	if err != nil {
		return nil, err
	}
	client, err := g.cache.Get(target.Provider, apiKey, target.Timeout)
	if err != nil {
		return nil, err
	}
	req.Model = target.Model

	var resp *Response
	operation := func() error {
		r, err := client.Complete(ctx, req)
		if err == nil {
			resp = r
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var perr *Error
		if errors.As(err, &perr) && !perr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Provider call failed, retrying", "provider", target.Provider, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, g.newBackOff(ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = target.Model
	}
	logger.Debug("Provider call completed", "provider", target.Provider, "model", resp.Model,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return resp, nil
}

// StaticKeys is a KeySource backed by a map, used in tests and test mode.
type StaticKeys map[string]string

// APIKey implements KeySource.
func (k StaticKeys) APIKey(provider string) (string, error) {
	if key, ok := k[provider]; ok {
		return key, nil
	}
	if provider == "echo" {
		return "", nil
	}
	return "", fmt.Errorf("API key not configured for provider %s", provider)
}
