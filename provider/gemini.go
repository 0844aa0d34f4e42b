package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"google.golang.org/genai"
)

// GeminiConfig holds configuration for the Gemini backend.
type GeminiConfig struct {
	APIKeys        []string // Tried in order; each is suspended independently
	Model          string   // default: "gemini-2.0-flash"
	IncludeContext bool     // Add the participant list to the prompt
	BaseURL        string   // Endpoint override (optional)
	Timeout        time.Duration
}

// GeminiRequest is one generateContent call.
type GeminiRequest struct {
	Model  string
	System string
	Prompt string
}

// GenerateFunc performs a generateContent call with one API key.
type GenerateFunc func(ctx context.Context, apiKey string, req GeminiRequest) (string, error)

// GeminiClient translates with Google's Gemini models. It holds several API
// keys and skips keys whose rate-limit suspension is still active; a 429 on
// one key is reported with that key's id so only the key is suspended.
type GeminiClient struct {
	keys           []string
	model          string
	includeContext bool
	baseURL        string
	timeout        time.Duration
	prompts        *Prompts
	keyChecker     KeyChecker
	participants   func() []string
	generate       GenerateFunc

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithKeyChecker sets where key suspensions are looked up.
func WithKeyChecker(k KeyChecker) GeminiOption {
	return func(c *GeminiClient) {
		c.keyChecker = k
	}
}

// WithParticipants supplies the names listed in context prompts.
func WithParticipants(fn func() []string) GeminiOption {
	return func(c *GeminiClient) {
		c.participants = fn
	}
}

// WithGenerateFunc replaces the genai call.
func WithGenerateFunc(fn GenerateFunc) GeminiOption {
	return func(c *GeminiClient) {
		c.generate = fn
	}
}

// WithGeminiPrompts sets the prompt templates.
func WithGeminiPrompts(p *Prompts) GeminiOption {
	return func(c *GeminiClient) {
		c.prompts = p
	}
}

// NewGeminiClient creates a Gemini backend.
func NewGeminiClient(cfg GeminiConfig, opts ...GeminiOption) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	c := &GeminiClient{
		keys:           append([]string(nil), cfg.APIKeys...),
		model:          model,
		includeContext: cfg.IncludeContext,
		baseURL:        cfg.BaseURL,
		timeout:        cfg.Timeout,
		prompts:        NewPrompts(nil),
		clients:        make(map[string]*genai.Client),
	}
	c.generate = c.genaiGenerate

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// KeyCount returns the number of configured API keys.
func (c *GeminiClient) KeyCount() int {
	return len(c.keys)
}

func (c *GeminiClient) buildRequest(text, from, to string) GeminiRequest {
	vars := promptVars(text, from, to)
	auto := from == "" || strings.EqualFold(from, translator.AutoDetect) || strings.EqualFold(from, translator.AutoDetected.Name)

	withContext := c.includeContext && c.participants != nil
	var system, prompt string
	switch {
	case withContext:
		vars["playerContext"] = strings.Join(c.participants(), ", ")
		system = PromptGeminiSystemContext
		prompt = PromptGeminiTranslateContext
		if auto {
			prompt = PromptGeminiAutoContext
		}
	default:
		system = PromptGeminiSystem
		prompt = PromptGeminiTranslate
		if auto {
			prompt = PromptGeminiAutoDetect
		}
	}

	return GeminiRequest{
		Model:  c.model,
		System: c.prompts.Render(system, nil),
		Prompt: c.prompts.Render(prompt, vars),
	}
}

// Translate implements Client.
func (c *GeminiClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	if len(c.keys) == 0 {
		return "", &BackendError{Backend: NameGemini, Message: "no API keys configured"}
	}

	req := c.buildRequest(text, from, to)

	var lastErr error
	attempted, suspended := 0, 0
	for i, key := range c.keys {
		keyID := translator.KeyID(i)
		if c.keyChecker != nil && c.keyChecker.IsKeySuspended(NameGemini, keyID) {
			suspended++
			continue
		}
		attempted++

		out, err := c.generate(ctx, key, req)
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		if geminiStatus(err) == http.StatusTooManyRequests {
			return "", &RateLimitError{
				Backend:    NameGemini,
				KeyID:      keyID,
				StatusCode: http.StatusTooManyRequests,
				Message:    fmt.Sprintf("key #%d rate limit exceeded", i),
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if attempted == 0 {
		return "", &BackendError{
			Backend: NameGemini,
			Message: fmt.Sprintf("all %d API key(s) are currently suspended due to rate limits", len(c.keys)),
		}
	}
	return "", &BackendError{
		Backend:   NameGemini,
		Message:   fmt.Sprintf("all available API keys failed (attempted: %d, suspended: %d)", attempted, suspended),
		Cause:     lastErr,
		Retryable: true,
	}
}

func (c *GeminiClient) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[apiKey]; ok {
		return client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newHTTPClient(c.timeout),
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.clients[apiKey] = client
	return client, nil
}

func (c *GeminiClient) genaiGenerate(ctx context.Context, apiKey string, req GeminiRequest) (string, error) {
	client, err := c.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
		TopP:              genai.Ptr[float32](0.8),
		TopK:              genai.Ptr[float32](20),
		MaxOutputTokens:   500,
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from Gemini")
	}
	return text, nil
}

// geminiStatus extracts the HTTP status from a genai error, or 0.
func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.StatusCode
	}
	return 0
}

var _ Client = (*GeminiClient)(nil)
