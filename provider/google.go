package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGoogleURL is the keyless gtx endpoint.
const DefaultGoogleURL = "https://translate.googleapis.com/translate_a/single"

var errEmptyGoogleResponse = errors.New("no translation segments in response")

// GoogleConfig holds configuration for the Google gtx backend.
type GoogleConfig struct {
	BaseURL string // default: DefaultGoogleURL
	Timeout time.Duration
}

// GoogleClient translates with Google's free gtx endpoint. No key is needed,
// but the endpoint rate limits aggressively.
type GoogleClient struct {
	http    *http.Client
	baseURL string
}

// NewGoogleClient creates a Google backend.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultGoogleURL
	}
	return &GoogleClient{http: newHTTPClient(cfg.Timeout), baseURL: base}
}

// googleCode applies the two places where gtx disagrees with ISO 639-1.
func googleCode(lang string) string {
	switch code := isoCode(lang); code {
	case "zh":
		return "zh-CN"
	case "he":
		return "iw"
	default:
		return code
	}
}

// Translate implements Client.
func (c *GoogleClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", googleCode(from))
	q.Set("tl", googleCode(to))
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", &BackendError{Backend: NameGoogle, Message: "building request", Cause: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	var root []json.RawMessage
	if err := doJSON(c.http, req, NameGoogle, &root); err != nil {
		return "", err
	}

	translated, err := parseGoogleSegments(root)
	if err != nil {
		return "", &BackendError{Backend: NameGoogle, Message: "invalid response format", Cause: err}
	}
	return translated, nil
}

// parseGoogleSegments joins the translated segments of a gtx response:
// [[["seg1","src1",...],["seg2","src2",...]], null, "uk", ...]
func parseGoogleSegments(root []json.RawMessage) (string, error) {
	if len(root) == 0 {
		return "", errEmptyGoogleResponse
	}

	var segments []json.RawMessage
	if err := json.Unmarshal(root[0], &segments); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, raw := range segments {
		var seg []json.RawMessage
		if err := json.Unmarshal(raw, &seg); err != nil || len(seg) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(seg[0], &s); err == nil {
			sb.WriteString(s)
		}
	}

	if sb.Len() == 0 {
		return "", errEmptyGoogleResponse
	}
	return sb.String(), nil
}

var _ Client = (*GoogleClient)(nil)
