package provider

import (
	"fmt"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/mc-mysterria/mysterria-translator-sub000/config"
	"github.com/rs/zerolog"
)

// Deps are the shared collaborators backends are built with.
type Deps struct {
	Prompts      *Prompts
	Suspensions  *translator.SuspensionRegistry
	Participants func() []string
	Logger       zerolog.Logger
}

// Build creates the named backend from configuration, wrapped in a throttle
// and a circuit breaker when limits for it are configured.
func Build(name string, cfg config.TranslationConfig, deps Deps) (Client, error) {
	prompts := deps.Prompts
	if prompts == nil {
		prompts = NewPrompts(nil)
	}

	var client Client
	switch name {
	case NameOllama:
		client = NewOllamaClient(OllamaConfig{
			URL:     cfg.Ollama.URL,
			Model:   cfg.Ollama.Model,
			APIKey:  cfg.Ollama.APIKey,
			Timeout: seconds(cfg.Ollama.TimeoutSeconds),
		}, prompts)

	case NameLibreTranslate:
		client = NewLibreTranslateClient(LibreTranslateConfig{
			URL:          cfg.LibreTranslate.URL,
			APIKey:       cfg.LibreTranslate.APIKey,
			Alternatives: cfg.LibreTranslate.Alternatives,
			Format:       cfg.LibreTranslate.Format,
			Timeout:      seconds(cfg.LibreTranslate.TimeoutSeconds),
		})

	case NameGemini:
		opts := []GeminiOption{WithGeminiPrompts(prompts)}
		if deps.Suspensions != nil {
			opts = append(opts, WithKeyChecker(deps.Suspensions))
			deps.Suspensions.SetKeyCount(NameGemini, len(cfg.Gemini.APIKeys))
		}
		if deps.Participants != nil {
			opts = append(opts, WithParticipants(deps.Participants))
		}
		client = NewGeminiClient(GeminiConfig{
			APIKeys:        cfg.Gemini.APIKeys,
			Model:          cfg.Gemini.Model,
			IncludeContext: cfg.Gemini.IncludeContext,
			Timeout:        seconds(cfg.Gemini.TimeoutSeconds),
		}, opts...)

	case NameOpenAI:
		client = NewOpenAIClient(OpenAIConfig{
			APIKey:             cfg.OpenAI.APIKey,
			Model:              cfg.OpenAI.Model,
			BaseURL:            cfg.OpenAI.BaseURL,
			Temperature:        float32(cfg.OpenAI.Temperature),
			UseTemperature:     cfg.OpenAI.UseTemperature,
			TopP:               float32(cfg.OpenAI.TopP),
			UseTopP:            cfg.OpenAI.UseTopP,
			MaxTokens:          cfg.OpenAI.MaxTokens,
			UseLegacyMaxTokens: cfg.OpenAI.UseLegacyMaxTokens,
			Timeout:            seconds(cfg.OpenAI.TimeoutSeconds),
		}, prompts)

	case NameGoogle:
		client = NewGoogleClient(GoogleConfig{
			BaseURL: cfg.Google.BaseURL,
			Timeout: seconds(cfg.Google.TimeoutSeconds),
		})

	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}

	limits, ok := cfg.Limits[name]
	if !ok {
		return client, nil
	}
	if limits.RequestsPerMinute > 0 {
		client = translator.NewThrottledClient(name, client, translator.ThrottleConfig{
			RequestsPerMinute: limits.RequestsPerMinute,
			BurstSize:         limits.Burst,
		})
	}
	if limits.BreakerFailures > 0 {
		client = NewBreakerClient(name, client, BreakerConfig{
			Failures: limits.BreakerFailures,
			Timeout:  seconds(limits.BreakerTimeoutSeconds),
		}, deps.Logger)
	}
	return client, nil
}

// Register builds every backend in the configured order and registers it
// with the executor. It returns the order actually registered; backends that
// fail to build are logged and left out.
func Register(executor *translator.Executor, cfg config.TranslationConfig, deps Deps) []string {
	var order []string
	for _, name := range cfg.Backends() {
		client, err := Build(name, cfg, deps)
		if err != nil {
			deps.Logger.Warn().Err(err).Str("backend", name).Msg("skipping backend")
			continue
		}
		executor.Register(name, client)
		order = append(order, name)
	}
	return order
}
