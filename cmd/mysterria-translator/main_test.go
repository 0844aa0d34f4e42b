package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// isolate points the CLI at an empty directory so no local config or .env
// leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MT_STORAGE__TYPE", "memory")
	return dir
}

func flags(dir string, args ...string) []string {
	return append([]string{
		"--config", filepath.Join(dir, "config.yml"),
		"--env", filepath.Join(dir, ".env"),
	}, args...)
}

func googleServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if q.Get("tl") != "en" {
			t.Errorf("tl = %q", q.Get("tl"))
		}
		_, _ = w.Write([]byte(`[[["hello everyone","привіт всім",null,null,1]],null,"uk"]`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"version"}, &stdout, &stderr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "mysterria-translator") {
		t.Errorf("expected version output, got: %s", stdout.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"frobnicate"}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRun_Translate(t *testing.T) {
	dir := isolate(t)
	var calls atomic.Int32
	srv := googleServer(t, &calls)
	t.Setenv("MT_TRANSLATION__GOOGLE__BASE_URL", srv.URL)

	var stdout, stderr bytes.Buffer
	err := run(flags(dir, "translate", "--backends", "google", "--lang", "en_us", "привіт всім"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("translate failed: %v\nstderr: %s", err, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "hello everyone" {
		t.Errorf("stdout = %q", got)
	}
	if calls.Load() != 1 {
		t.Errorf("backend calls = %d", calls.Load())
	}
}

func TestRun_TranslateJSON(t *testing.T) {
	dir := isolate(t)
	var calls atomic.Int32
	srv := googleServer(t, &calls)
	t.Setenv("MT_TRANSLATION__GOOGLE__BASE_URL", srv.URL)

	var stdout, stderr bytes.Buffer
	err := run(flags(dir, "translate", "-b", "google", "--json", "привіт всім"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("translate failed: %v\nstderr: %s", err, stderr.String())
	}

	var res outcomeJSON
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout.String(), err)
	}
	if res.Status != "translated" || res.Backend != "google" || res.Source != "uk_ua" || res.Target != "en_us" {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_TranslateStdin(t *testing.T) {
	dir := isolate(t)
	var calls atomic.Int32
	srv := googleServer(t, &calls)
	t.Setenv("MT_TRANSLATION__GOOGLE__BASE_URL", srv.URL)

	root := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	var stdout bytes.Buffer
	root.SetIn(strings.NewReader("привіт всім\n"))
	root.SetOut(&stdout)
	root.SetArgs(flags(dir, "translate", "-b", "google"))
	if err := root.Execute(); err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "hello everyone" {
		t.Errorf("stdout = %q", got)
	}
}

func TestRun_TranslateNotNeeded(t *testing.T) {
	dir := isolate(t)
	var calls atomic.Int32
	srv := googleServer(t, &calls)
	t.Setenv("MT_TRANSLATION__GOOGLE__BASE_URL", srv.URL)

	var stdout, stderr bytes.Buffer
	err := run(flags(dir, "translate", "-b", "google", "--lang", "en_us", "hello there"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "hello there" {
		t.Errorf("stdout = %q", got)
	}
	if calls.Load() != 0 {
		t.Error("backend should not be called for same-language text")
	}
}

func TestRun_TranslateAllBackendsDown(t *testing.T) {
	dir := isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	t.Setenv("MT_TRANSLATION__GOOGLE__BASE_URL", srv.URL)

	var stdout, stderr bytes.Buffer
	err := run(flags(dir, "translate", "-b", "google", "привіт всім"), &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "translation failed") {
		t.Errorf("expected failure, got %v", err)
	}
}

func TestRun_TranslateDisabled(t *testing.T) {
	dir := isolate(t)
	t.Setenv("MT_TRANSLATION__ENABLED", "false")

	var stdout, stderr bytes.Buffer
	err := run(flags(dir, "translate", "привіт"), &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Errorf("expected disabled error, got %v", err)
	}
}

func TestRun_Detect(t *testing.T) {
	dir := isolate(t)

	var stdout, stderr bytes.Buffer
	if err := run(flags(dir, "detect", "--locale", "en_us", "як справи?"), &stdout, &stderr); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "uk_ua (Ukrainian)") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(out, "needs translation for en_us: true") {
		t.Errorf("stdout = %q", out)
	}
}

func TestRun_ValidateConfigFile(t *testing.T) {
	dir := isolate(t)
	cfg := `
translation:
  provider: "gemini, google"
  gemini:
    api_keys: ["k1", "k2"]
`
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run(flags(dir, "validate"), &stdout, &stderr); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "gemini -> google") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRun_ValidateRejectsBadConfig(t *testing.T) {
	dir := isolate(t)
	t.Setenv("MT_TRANSLATION__CACHE__TYPE", "memcached")

	var stdout, stderr bytes.Buffer
	if err := run(flags(dir, "validate"), &stdout, &stderr); err == nil {
		t.Error("expected invalid config error")
	}
}

func TestRun_EnvFile(t *testing.T) {
	dir := isolate(t)
	var calls atomic.Int32
	srv := googleServer(t, &calls)

	env := "MT_TRANSLATION__GOOGLE__BASE_URL=" + srv.URL + "\nMT_TRANSLATION__PROVIDER=google\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("MT_TRANSLATION__GOOGLE__BASE_URL")
		os.Unsetenv("MT_TRANSLATION__PROVIDER")
	})

	var stdout, stderr bytes.Buffer
	if err := run(flags(dir, "translate", "привіт всім"), &stdout, &stderr); err != nil {
		t.Fatalf("translate failed: %v\nstderr: %s", err, stderr.String())
	}
	if calls.Load() != 1 {
		t.Errorf("backend calls = %d, want 1 via .env config", calls.Load())
	}
}

func TestRootCommand_Flags(t *testing.T) {
	root := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	for _, name := range []string{"config", "env", "log-level", "log-format"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}

	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("serve command: %v", err)
	}
	for _, name := range []string{"addr", "snapshot", "trace"} {
		if serve.Flags().Lookup(name) == nil {
			t.Errorf("serve is missing --%s", name)
		}
	}
}
