package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
)

const maxResponseBytes = 1 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// doJSON sends req and decodes a 200 response body into out.
func doJSON(hc *http.Client, req *http.Request, backend string, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return &BackendError{Backend: backend, Message: "request failed", Cause: err, Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &BackendError{Backend: backend, Message: "reading response", Cause: err, Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(backend, "", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &BackendError{Backend: backend, Message: "invalid response format", Cause: err}
	}
	return nil
}

// statusError maps a non-200 status to the error the fallback chain expects:
// 429 suspends, 408 and 5xx are retried, anything else moves on.
func statusError(backend, keyID string, status int, body string) error {
	body = truncate(strings.TrimSpace(body), 200)
	if status == http.StatusTooManyRequests {
		return &RateLimitError{Backend: backend, KeyID: keyID, StatusCode: status, Message: body}
	}
	return &BackendError{
		Backend:   backend,
		Message:   fmt.Sprintf("responded with status %d: %s", status, body),
		Retryable: status >= 500 || status == http.StatusRequestTimeout,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// cleanTranslation strips the wrapping quotes and "Translation:" prefix that
// chat models add despite being told not to.
func cleanTranslation(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(strings.ToLower(s), "translation:") {
		s = strings.TrimSpace(s[len("translation:"):])
	}
	return s
}

// isoCode maps a display name to the code REST backends expect. "auto"
// passes through; unknown names fall back to their first two letters.
func isoCode(lang string) string {
	if lang == "" {
		return translator.AutoDetect
	}
	if iso := translator.ISOCode(lang); iso != "" {
		return iso
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if len(lang) > 2 {
		return lang[:2]
	}
	return lang
}
