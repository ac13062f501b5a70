package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurochat/pkg/chattypes"
)

// scriptedClient fails with the queued errors before succeeding.
type scriptedClient struct {
	failures []error
	calls    int
	lastReq  Request
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Complete(ctx context.Context, req Request) (*Response, error) {
	c.calls++
	c.lastReq = req
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.failures) > 0 {
		err := c.failures[0]
		c.failures = c.failures[1:]
		return nil, err
	}
	return &Response{Text: "ok"}, nil
}

func newScriptedGateway(client *scriptedClient) *Gateway {
	cache := NewCache(map[string]Constructor{
		"scripted": func(string, time.Duration) Client { return client },
	})
	return NewGateway(cache, StaticKeys{"scripted": "sk-test"}, WithRetries(2, time.Millisecond, 2*time.Millisecond))
}

func userRequest(text string) Request {
	return Request{Messages: []chattypes.ChatMessage{chattypes.NewUserMessage(text, time.Now())}}
}

func TestCache_ReusesClientPerKey(t *testing.T) {
	built := 0
	cache := NewCache(map[string]Constructor{
		"scripted": func(string, time.Duration) Client { built++; return &scriptedClient{} },
	})

	a, err := cache.Get("scripted", "key-1", time.Minute)
	require.NoError(t, err)
	b, err := cache.Get("scripted", "key-1", time.Minute)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, built)

	_, err = cache.Get("scripted", "key-1", 2*time.Minute)
	require.NoError(t, err)
	_, err = cache.Get("scripted", "key-2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, built, "timeout and credential are part of the key")
	assert.Equal(t, 3, cache.Len())

	cache.Invalidate()
	assert.Equal(t, 0, cache.Len())
	_, err = cache.Get("scripted", "key-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 4, built, "invalidated clients are rebuilt")
}

func TestCache_UnsupportedProvider(t *testing.T) {
	cache := NewCache(nil)
	_, err := cache.Get("mystery", "key", time.Minute)
	assert.Error(t, err)
	_, err = cache.Get("", "key", time.Minute)
	assert.Error(t, err)

	assert.True(t, cache.IsSupported("openai"))
	assert.Equal(t, []string{"anthropic", "echo", "gemini", "openai"}, cache.Supported())
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("sk-a"), Fingerprint("sk-a"))
	assert.NotEqual(t, Fingerprint("sk-a"), Fingerprint("sk-b"))
	assert.NotContains(t, Fingerprint("sk-secret"), "secret")
}

func TestGateway_RetriesTransientFailures(t *testing.T) {
	client := &scriptedClient{failures: []error{
		&Error{Provider: "scripted", Status: 503, Err: errors.New("overloaded")},
		&Error{Provider: "scripted", Err: errors.New("connection reset")},
	}}
	gw := newScriptedGateway(client)

	resp, err := gw.Send(context.Background(), Target{Provider: "scripted", Model: "m1"}, userRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "m1", resp.Model)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, "m1", client.lastReq.Model)
}

func TestGateway_DoesNotRetryPermanentFailures(t *testing.T) {
	client := &scriptedClient{failures: []error{
		&Error{Provider: "scripted", Status: 401, Err: errors.New("bad key")},
	}}
	gw := newScriptedGateway(client)

	_, err := gw.Send(context.Background(), Target{Provider: "scripted", Model: "m1"}, userRequest("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, 1, client.calls)
}

func TestGateway_GivesUpAfterRetryBudget(t *testing.T) {
	transient := &Error{Provider: "scripted", Status: 500, Err: errors.New("boom")}
	client := &scriptedClient{failures: []error{transient, transient, transient, transient}}
	gw := newScriptedGateway(client)

	_, err := gw.Send(context.Background(), Target{Provider: "scripted"}, userRequest("hi"))
	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
}

func TestGateway_CancellationIsReturned(t *testing.T) {
	client := &scriptedClient{}
	gw := newScriptedGateway(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Send(ctx, Target{Provider: "scripted"}, userRequest("hi"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGateway_MissingKey(t *testing.T) {
	gw := NewGateway(NewCache(nil), StaticKeys{})
	_, err := gw.Send(context.Background(), Target{Provider: "openai", Model: "gpt-4o"}, userRequest("hi"))
	assert.Error(t, err)
}

func TestEchoClient(t *testing.T) {
	gw := NewGateway(NewCache(nil), StaticKeys{})
	resp, err := gw.Send(context.Background(), Target{Provider: "echo", Model: "echo-1"}, userRequest("ping pong"))
	require.NoError(t, err)
	assert.Equal(t, "echo: ping pong", resp.Text)
	assert.Equal(t, int64(2), resp.Usage.InputTokens)

	_, err = NewEchoClient().Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		err      *Error
		expected bool
	}{
		{&Error{Status: 0, Err: errors.New("eof")}, true},
		{&Error{Status: 429, Err: errors.New("slow down")}, true},
		{&Error{Status: 502, Err: errors.New("bad gateway")}, true},
		{&Error{Status: 400, Err: errors.New("bad request")}, false},
		{&Error{Status: 401, Err: errors.New("unauthorized")}, false},
		{&Error{Status: 0, Err: context.Canceled}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.err.Retryable(), tt.err.Error())
	}
}
