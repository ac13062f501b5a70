package provider

import (
	"context"
	"fmt"
	"strings"
)

// EchoClient is an offline backend that answers with the last user message.
// It needs no credentials and is the default provider in test mode.
type EchoClient struct{}

// NewEchoClient creates an echo client.
func NewEchoClient() *EchoClient {
	return &EchoClient{}
}

// Name returns "echo".
func (c *EchoClient) Name() string {
	return "echo"
}

// Complete echoes the final user message of the request.
func (c *EchoClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prompt := lastUserText(req.Messages)
	if prompt == "" {
		return nil, &Error{Provider: c.Name(), Status: 400, Err: fmt.Errorf("no user message to echo")}
	}

	text := "echo: " + prompt
	resp := &Response{
		Text:  text,
		Model: req.Model,
		Usage: Usage{
			InputTokens:  int64(len(strings.Fields(prompt))),
			OutputTokens: int64(len(strings.Fields(text))),
		},
	}
	return resp, nil
}
