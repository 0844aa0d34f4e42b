package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig holds configuration for the Ollama backend.
type OllamaConfig struct {
	URL     string        // Server root, e.g. http://localhost:11434
	Model   string        // Model to use (required)
	APIKey  string        // Sent as a bearer token when set
	Timeout time.Duration // Per-request timeout (default: 10s)
}

// OllamaClient translates with a local or hosted Ollama model through
// /api/generate.
type OllamaClient struct {
	http    *http.Client
	baseURL string
	model   string
	apiKey  string
	prompts *Prompts
}

// NewOllamaClient creates an Ollama backend. prompts may be nil.
func NewOllamaClient(cfg OllamaConfig, prompts *Prompts) *OllamaClient {
	if prompts == nil {
		prompts = NewPrompts(nil)
	}
	return &OllamaClient{
		http:    newHTTPClient(cfg.Timeout),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		prompts: prompts,
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Translate implements Client.
func (c *OllamaClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:   c.model,
		Prompt:  c.prompts.Render(PromptOllama, promptVars(text, from, to)),
		Options: ollamaOptions{Temperature: 0.3, TopP: 0.9},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", &BackendError{Backend: NameOllama, Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	var resp ollamaResponse
	if err := doJSON(c.http, req, NameOllama, &resp); err != nil {
		return "", err
	}

	return cleanTranslation(resp.Response), nil
}

// Available reports whether the server answers /api/tags.
func (c *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

var _ Client = (*OllamaClient)(nil)
