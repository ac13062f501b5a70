package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"neurochat/internal/logger"
	"neurochat/pkg/chattypes"
)

// GeminiClient implements Client for the Google Gemini API.
// Search mode is served by the Google Search grounding tool, whose sources become citations.
type GeminiClient struct {
	apiKey  string
	timeout time.Duration
	client  *genai.Client
}

// NewGeminiClient creates a Gemini client with lazy initialization.
func NewGeminiClient(apiKey string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, timeout: timeout}
}

// Name returns "gemini".
func (c *GeminiClient) Name() string {
	return "gemini"
}

func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) error {
	if c.client != nil {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("google API key not configured")
	}

	clientConfig := &genai.ClientConfig{APIKey: c.apiKey}
	if c.timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: c.timeout}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = client

	logger.Debug("Gemini client initialized", "provider", "gemini", "timeout", c.timeout)
	return nil
}

// Complete sends a generate-content request to Gemini.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.initializeClientIfNeeded(ctx); err != nil {
		return nil, &Error{Provider: c.Name(), Status: http.StatusUnauthorized, Err: err}
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Search {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	contents := convertMessagesToGemini(req.Messages)
	logger.Debug("Sending Gemini request", "model", req.Model, "content_count", len(contents), "search", req.Search)

	result, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, &Error{Provider: c.Name(), Status: geminiStatus(err), Err: err}
	}

	text, citations := processGeminiResponse(result)
	if text == "" {
		return nil, &Error{Provider: c.Name(), Err: fmt.Errorf("empty response content")}
	}

	resp := &Response{Text: text, Citations: citations, Model: req.Model}
	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	return resp, nil
}

func convertMessagesToGemini(msgs []chattypes.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case chattypes.RoleUser:
			role = "user"
		case chattypes.RoleAssistant:
			role = "model"
		default:
			continue
		}
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: msg.Text()}},
			Role:  role,
		})
	}
	return contents
}

// processGeminiResponse joins text parts, skipping thought parts, and collects
// grounding sources as citations.
func processGeminiResponse(result *genai.GenerateContentResponse) (string, []chattypes.Citation) {
	var content strings.Builder
	var citations []chattypes.Citation
	seen := make(map[string]bool)

	for _, candidate := range result.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part.Text == "" || part.Thought {
					continue
				}
				content.WriteString(part.Text)
			}
		}
		if candidate.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			citations = append(citations, chattypes.Citation{Title: chunk.Web.Title, URL: chunk.Web.URI})
		}
	}

	return content.String(), citations
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
