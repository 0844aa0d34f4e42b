package provider

import (
	"strings"
	"testing"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/mc-mysterria/mysterria-translator-sub000/config"
	"github.com/rs/zerolog"
)

func testConfig(t *testing.T) config.TranslationConfig {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	tr := cfg.Translation
	tr.Gemini.APIKeys = []string{"a", "b", "c"}
	tr.OpenAI.APIKey = "sk-test"
	return tr
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)

	tests := map[string]any{
		NameOllama:         (*OllamaClient)(nil),
		NameLibreTranslate: (*LibreTranslateClient)(nil),
		NameGemini:         (*GeminiClient)(nil),
		NameOpenAI:         (*OpenAIClient)(nil),
		NameGoogle:         (*GoogleClient)(nil),
	}

	for name, want := range tests {
		client, err := Build(name, cfg, Deps{})
		if err != nil {
			t.Errorf("Build(%s) failed: %v", name, err)
			continue
		}
		if gotType, wantType := typeName(client), typeName(want); gotType != wantType {
			t.Errorf("Build(%s) = %s, want %s", name, gotType, wantType)
		}
	}

	if _, err := Build("deepl", cfg, Deps{}); err == nil {
		t.Error("unknown backend should fail")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *OllamaClient:
		return "ollama"
	case *LibreTranslateClient:
		return "libretranslate"
	case *GeminiClient:
		return "gemini"
	case *OpenAIClient:
		return "openai"
	case *GoogleClient:
		return "google"
	case *BreakerClient:
		return "breaker"
	case *translator.ThrottledClient:
		return "throttle"
	default:
		return "unknown"
	}
}

func TestBuild_Limits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Limits = map[string]config.LimitConfig{
		NameGoogle: {RequestsPerMinute: 30},
		NameOpenAI: {RequestsPerMinute: 60, BreakerFailures: 3},
	}

	google, err := Build(NameGoogle, cfg, Deps{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	if typeName(google) != "throttle" {
		t.Errorf("google = %s, want throttle", typeName(google))
	}

	openai, err := Build(NameOpenAI, cfg, Deps{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	if typeName(openai) != "breaker" {
		t.Errorf("openai = %s, want breaker", typeName(openai))
	}
}

func TestRegister(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider = "gemini, deepl, google"

	registry := translator.NewSuspensionRegistry()
	executor := translator.NewExecutor()

	order := Register(executor, cfg, Deps{Suspensions: registry, Logger: zerolog.Nop()})

	if strings.Join(order, ",") != "gemini,google" {
		t.Errorf("order = %v", order)
	}
	if _, ok := executor.Client(NameGemini); !ok {
		t.Error("gemini should be registered")
	}
	if registry.KeyCount(NameGemini) != 3 {
		t.Errorf("gemini key count = %d, want 3", registry.KeyCount(NameGemini))
	}
}
