package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"neurochat/internal/logger"
	"neurochat/pkg/chattypes"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicClient implements Client for Anthropic's messages API.
type AnthropicClient struct {
	apiKey  string
	timeout time.Duration
	client  *anthropic.Client
}

// NewAnthropicClient creates an Anthropic client with lazy initialization.
func NewAnthropicClient(apiKey string, timeout time.Duration) *AnthropicClient {
	return &AnthropicClient{apiKey: apiKey, timeout: timeout}
}

// Name returns "anthropic".
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

func (c *AnthropicClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("anthropic API key not configured")
	}

	options := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.timeout > 0 {
		options = append(options, option.WithHTTPClient(&http.Client{Timeout: c.timeout}))
	}
	client := anthropic.NewClient(options...)
	c.client = &client

	logger.Debug("Anthropic client initialized", "provider", "anthropic", "timeout", c.timeout)
	return nil
}

// Complete sends a message request to Anthropic.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.initializeClientIfNeeded(); err != nil {
		return nil, &Error{Provider: c.Name(), Status: http.StatusUnauthorized, Err: err}
	}
	if req.Search {
		logger.Warn("Search is not supported by the anthropic adapter, sending without it", "model", req.Model)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: anthropicDefaultMaxTokens,
		Messages:  convertMessagesToAnthropic(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	logger.Debug("Sending Anthropic request", "model", req.Model, "message_count", len(params.Messages))
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &Error{Provider: c.Name(), Status: anthropicStatus(err), Err: err}
	}

	var content strings.Builder
	for _, block := range message.Content {
		content.WriteString(block.Text)
	}
	if content.Len() == 0 {
		return nil, &Error{Provider: c.Name(), Err: fmt.Errorf("empty response content")}
	}

	return &Response{
		Text:  content.String(),
		Model: string(message.Model),
		Usage: Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}, nil
}

func convertMessagesToAnthropic(msgs []chattypes.ChatMessage) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case chattypes.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text())))
		case chattypes.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text())))
		}
	}
	return messages
}

func anthropicStatus(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
