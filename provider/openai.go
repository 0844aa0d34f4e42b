package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the OpenAI backend.
type OpenAIConfig struct {
	APIKey             string  // OpenAI API key
	Model              string  // Model to use (default: "gpt-4o-mini")
	BaseURL            string  // Custom base URL (optional, any OpenAI-compatible server)
	Temperature        float32 // Sent only when UseTemperature is set
	UseTemperature     bool
	TopP               float32 // Sent only when UseTopP is set
	UseTopP            bool
	MaxTokens          int  // Completion budget (default: 1000)
	UseLegacyMaxTokens bool // Send max_tokens instead of max_completion_tokens
	Timeout            time.Duration
}

// OpenAIClient translates with the chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	cfg     OpenAIConfig
	prompts *Prompts
}

// NewOpenAIClient creates an OpenAI backend. prompts may be nil.
func NewOpenAIClient(cfg OpenAIConfig, prompts *Prompts) *OpenAIClient {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = newHTTPClient(cfg.Timeout)

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if prompts == nil {
		prompts = NewPrompts(nil)
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		cfg:     cfg,
		prompts: prompts,
	}
}

func (c *OpenAIClient) buildRequest(text, from, to string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.Render(PromptOpenAISystem, nil)},
			{Role: openai.ChatMessageRoleUser, Content: c.prompts.Render(PromptOpenAIUser, promptVars(text, from, to))},
		},
	}

	// Reasoning models reject sampling parameters, so both are optional.
	if c.cfg.UseTemperature {
		req.Temperature = c.cfg.Temperature
	}
	if c.cfg.UseTopP {
		req.TopP = c.cfg.TopP
	}
	if c.cfg.UseLegacyMaxTokens {
		req.MaxTokens = c.cfg.MaxTokens
	} else {
		req.MaxCompletionTokens = c.cfg.MaxTokens
	}
	return req
}

// Translate implements Client.
func (c *OpenAIClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(text, from, to))
	if err != nil {
		return "", openAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &BackendError{
			Backend:   NameOpenAI,
			Message:   "no choices in response",
			Retryable: true,
		}
	}

	return cleanTranslation(resp.Choices[0].Message.Content), nil
}

func openAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusTooManyRequests {
		return &RateLimitError{Backend: NameOpenAI, StatusCode: status, Message: err.Error()}
	}
	return &BackendError{
		Backend:   NameOpenAI,
		Message:   "OpenAI API call failed",
		Cause:     err,
		Retryable: status == 0 || status >= 500 || status == http.StatusRequestTimeout,
	}
}

var _ Client = (*OpenAIClient)(nil)
