package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// LibreTranslateConfig holds configuration for the LibreTranslate backend.
type LibreTranslateConfig struct {
	URL          string // Full /translate endpoint
	APIKey       string
	Alternatives int    // Alternatives to request (default: 3)
	Format       string // "text" or "html" (default: "text")
	Timeout      time.Duration
}

// LibreTranslateClient translates with a LibreTranslate instance.
type LibreTranslateClient struct {
	http         *http.Client
	url          string
	apiKey       string
	alternatives int
	format       string
}

// NewLibreTranslateClient creates a LibreTranslate backend.
func NewLibreTranslateClient(cfg LibreTranslateConfig) *LibreTranslateClient {
	alternatives := cfg.Alternatives
	if alternatives <= 0 {
		alternatives = 3
	}
	format := cfg.Format
	if format == "" {
		format = "text"
	}
	apiKey := cfg.APIKey
	if apiKey == "your-api-key-here" {
		apiKey = ""
	}
	return &LibreTranslateClient{
		http:         newHTTPClient(cfg.Timeout),
		url:          cfg.URL,
		apiKey:       apiKey,
		alternatives: alternatives,
		format:       format,
	}
}

type libreRequest struct {
	Q            string `json:"q"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Format       string `json:"format"`
	Alternatives int    `json:"alternatives"`
	APIKey       string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string   `json:"translatedText"`
	Alternatives   []string `json:"alternatives"`
}

// Translate implements Client.
func (c *LibreTranslateClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	payload, err := json.Marshal(libreRequest{
		Q:            text,
		Source:       isoCode(from),
		Target:       isoCode(to),
		Format:       c.format,
		Alternatives: c.alternatives,
		APIKey:       c.apiKey,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", &BackendError{Backend: NameLibreTranslate, Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var resp libreResponse
	if err := doJSON(c.http, req, NameLibreTranslate, &resp); err != nil {
		return "", err
	}

	switch {
	case resp.TranslatedText != "":
		return resp.TranslatedText, nil
	case len(resp.Alternatives) > 0:
		return resp.Alternatives[0], nil
	}
	return "", &BackendError{Backend: NameLibreTranslate, Message: "invalid response format"}
}

var _ Client = (*LibreTranslateClient)(nil)
