package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"neurochat/internal/logger"
	"neurochat/pkg/chattypes"
)

// OpenAIClient implements Client for OpenAI's chat completions API.
// The SDK client is created lazily on the first request.
type OpenAIClient struct {
	apiKey  string
	timeout time.Duration
	client  *openai.Client
}

// NewOpenAIClient creates an OpenAI client with lazy initialization.
func NewOpenAIClient(apiKey string, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{apiKey: apiKey, timeout: timeout}
}

// Name returns "openai".
func (c *OpenAIClient) Name() string {
	return "openai"
}

func (c *OpenAIClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}

	options := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.timeout > 0 {
		options = append(options, option.WithHTTPClient(&http.Client{Timeout: c.timeout}))
	}
	client := openai.NewClient(options...)
	c.client = &client

	logger.Debug("OpenAI client initialized", "provider", "openai", "timeout", c.timeout)
	return nil
}

// Complete sends a chat completion request to OpenAI.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.initializeClientIfNeeded(); err != nil {
		return nil, &Error{Provider: c.Name(), Status: http.StatusUnauthorized, Err: err}
	}
	if req.Search {
		logger.Warn("Search is not supported by the openai adapter, sending without it", "model", req.Model)
	}

	messages := convertMessagesToOpenAI(req.Messages)
	if req.SystemPrompt != "" {
		messages = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.SystemPrompt)}, messages...)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}

	logger.Debug("Sending OpenAI request", "model", req.Model, "message_count", len(messages))
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &Error{Provider: c.Name(), Status: openAIStatus(err), Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &Error{Provider: c.Name(), Err: fmt.Errorf("no response choices returned")}
	}

	content := completion.Choices[0].Message.Content
	if content == "" {
		return nil, &Error{Provider: c.Name(), Err: fmt.Errorf("empty response content")}
	}

	return &Response{
		Text:  content,
		Model: completion.Model,
		Usage: Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

func convertMessagesToOpenAI(msgs []chattypes.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case chattypes.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Text()))
		case chattypes.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Text()))
		}
	}
	return messages
}

func openAIStatus(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
