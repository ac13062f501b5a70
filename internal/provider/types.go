// Package provider implements the AI provider gateway: per-vendor clients, a cache of
// client instances and a Gateway that sends one request and returns one accumulated
// response.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"neurochat/pkg/chattypes"
)

// Request is one completion call.
type Request struct {
	Messages     []chattypes.ChatMessage
	SystemPrompt string
	Model        string
	Search       bool
}

// Usage reports token accounting as returned by the provider.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the accumulated outcome of a completion call.
type Response struct {
	Text      string
	Citations []chattypes.Citation
	Usage     Usage
	Model     string
}

// Client is implemented by each vendor adapter.
type Client interface {
	// Name returns the provider name (e.g. "openai").
	Name() string
	// Complete sends the request and blocks until the full reply is available or ctx ends.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Constructor builds a client for an API key and request timeout.
type Constructor func(apiKey string, timeout time.Duration) Client

// Error wraps a provider failure with the HTTP status when one is known.
type Error struct {
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt:
// rate limits, server errors and transport errors without a status.
func (e *Error) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// lastUserText returns the text of the final user message of a request.
func lastUserText(msgs []chattypes.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chattypes.RoleUser {
			return msgs[i].Text()
		}
	}
	return ""
}
