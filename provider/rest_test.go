package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
)

func TestOllamaClient_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Model != "llama3.1" || req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		if !strings.Contains(req.Prompt, "Translate the following Ukrainian text to English") ||
			!strings.HasSuffix(req.Prompt, "привіт") {
			t.Errorf("prompt = %q", req.Prompt)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  \"hello\"\n"})
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{URL: srv.URL + "/", Model: "llama3.1", APIKey: "secret"}, nil)
	got, err := c.Translate(context.Background(), "привіт", "Ukrainian", "English")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestOllamaClient_Errors(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", status)
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{URL: srv.URL, Model: "m"}, nil)

	_, err := c.Translate(context.Background(), "привіт", "Ukrainian", "English")
	if k := translator.Classify(err).Kind; k != translator.ResultTransient {
		t.Errorf("500 classified as %v", k)
	}

	status = http.StatusTooManyRequests
	_, err = c.Translate(context.Background(), "привіт", "Ukrainian", "English")
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) || rateErr.Backend != NameOllama {
		t.Errorf("expected rate limit error, got %v", err)
	}
}

func TestOllamaClient_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if !NewOllamaClient(OllamaConfig{URL: srv.URL}, nil).Available(context.Background()) {
		t.Error("expected server to be available")
	}

	srv.Close()
	if NewOllamaClient(OllamaConfig{URL: srv.URL}, nil).Available(context.Background()) {
		t.Error("closed server should be unavailable")
	}
}

func TestOllamaClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{URL: srv.URL, Model: "m", Timeout: 20 * time.Millisecond}, nil)
	_, err := c.Translate(context.Background(), "привіт", "Ukrainian", "English")
	if k := translator.Classify(err).Kind; k != translator.ResultTransient {
		t.Errorf("timeout classified as %v (%v)", k, err)
	}
}

func TestLibreTranslateClient_Translate(t *testing.T) {
	var got libreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"translatedText": "hello"})
	}))
	defer srv.Close()

	c := NewLibreTranslateClient(LibreTranslateConfig{URL: srv.URL, APIKey: "your-api-key-here"})
	out, err := c.Translate(context.Background(), "привіт", "Ukrainian", "English")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out != "hello" {
		t.Errorf("got %q", out)
	}
	if got.Source != "uk" || got.Target != "en" || got.Format != "text" || got.Alternatives != 3 {
		t.Errorf("unexpected request %+v", got)
	}
	if got.APIKey != "" {
		t.Error("placeholder api key should not be sent")
	}
}

func TestLibreTranslateClient_Alternatives(t *testing.T) {
	body := `{"alternatives":["hi","hey"]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewLibreTranslateClient(LibreTranslateConfig{URL: srv.URL, APIKey: "real"})
	out, err := c.Translate(context.Background(), "привіт", "Ukrainian", "English")
	if err != nil || out != "hi" {
		t.Errorf("got %q, %v", out, err)
	}

	body = `{}`
	_, err = c.Translate(context.Background(), "привіт", "Ukrainian", "English")
	if k := translator.Classify(err).Kind; k != translator.ResultFailed {
		t.Errorf("empty response classified as %v", k)
	}
}

func TestGoogleClient_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("client") != "gtx" || q.Get("dt") != "t" {
			t.Errorf("query = %v", q)
		}
		if q.Get("sl") != "uk" || q.Get("tl") != "zh-CN" {
			t.Errorf("sl/tl = %s/%s", q.Get("sl"), q.Get("tl"))
		}
		if q.Get("q") != "привіт. як справи?" {
			t.Errorf("q = %q", q.Get("q"))
		}
		_, _ = w.Write([]byte(`[[["你好。","привіт.",null,null,1],["你好吗？","як справи?",null,null,1]],null,"uk"]`))
	}))
	defer srv.Close()

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	out, err := c.Translate(context.Background(), "привіт. як справи?", "Ukrainian", "Chinese")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out != "你好。你好吗？" {
		t.Errorf("got %q", out)
	}
}

func TestGoogleClient_Errors(t *testing.T) {
	status, body := http.StatusTooManyRequests, ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	_, err := c.Translate(context.Background(), "привіт", "auto", "English")
	if k := translator.Classify(err).Kind; k != translator.ResultRateLimited {
		t.Errorf("429 classified as %v", k)
	}

	status, body = http.StatusOK, `[[],null,"uk"]`
	_, err = c.Translate(context.Background(), "привіт", "auto", "English")
	if k := translator.Classify(err).Kind; k != translator.ResultFailed {
		t.Errorf("empty segments classified as %v", k)
	}
}

func TestGoogleCode(t *testing.T) {
	tests := map[string]string{
		"Hebrew":    "iw",
		"Chinese":   "zh-CN",
		"Ukrainian": "uk",
		"auto":      "auto",
	}
	for in, want := range tests {
		if got := googleCode(in); got != want {
			t.Errorf("googleCode(%q) = %q, want %q", in, got, want)
		}
	}
}
