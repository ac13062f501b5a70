package testutils

import (
	"context"
	"fmt"
	"sync"

	"neurochat/internal/provider"
	"neurochat/pkg/chattypes"
)

// Step is one scripted provider outcome. A Step with Block set waits for the
// request context to be cancelled and returns its error.
type Step struct {
	Text      string
	Citations []chattypes.Citation
	Err       error
	Block     bool
}

// Call records one request seen by FakeGateway.
type Call struct {
	Target  provider.Target
	Request provider.Request
}

// FakeGateway is a scripted stand-in for provider.Gateway. Once the script is
// exhausted it answers "reply N".
type FakeGateway struct {
	mu     sync.Mutex
	script []Step
	calls  []Call
}

// NewFakeGateway creates a gateway that replays steps in order.
func NewFakeGateway(steps ...Step) *FakeGateway {
	return &FakeGateway{script: steps}
}

// Push appends steps to the script.
func (g *FakeGateway) Push(steps ...Step) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script = append(g.script, steps...)
}

// Send implements the orchestrator's Sender.
func (g *FakeGateway) Send(ctx context.Context, target provider.Target, req provider.Request) (*provider.Response, error) {
	g.mu.Lock()
	req.Messages = chattypes.CloneMessages(req.Messages)
	g.calls = append(g.calls, Call{Target: target, Request: req})
	n := len(g.calls)
	var step Step
	scripted := len(g.script) > 0
	if scripted {
		step, g.script = g.script[0], g.script[1:]
	}
	g.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step.Err != nil {
		return nil, step.Err
	}
	text := step.Text
	if !scripted || text == "" {
		text = fmt.Sprintf("reply %d", n)
	}
	return &provider.Response{
		Text:      text,
		Citations: step.Citations,
		Model:     target.Model,
		Usage:     provider.Usage{InputTokens: int64(len(req.Messages)), OutputTokens: 1},
	}, nil
}

// Calls returns every recorded request.
func (g *FakeGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// LastCall returns the most recent request.
func (g *FakeGateway) LastCall() (Call, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return Call{}, false
	}
	return g.calls[len(g.calls)-1], true
}
