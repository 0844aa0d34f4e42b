package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// KnownBackends lists the backend names the service can build.
var KnownBackends = []string{"ollama", "libretranslate", "gemini", "openai", "google"}

// Validate checks the configuration. Problems that prevent startup are joined
// into err; settings outside their recommended range come back as warnings.
func (c *Config) Validate() (warnings []string, err error) {
	var errs []error
	t := c.Translation

	if !t.Enabled {
		warnings = append(warnings, "translation is disabled")
	}

	backends := t.Backends()
	if len(backends) == 0 {
		errs = append(errs, errors.New("no translation providers configured"))
	}
	for _, name := range backends {
		switch name {
		case "ollama":
			errs = append(errs, checkURL("ollama: url", t.Ollama.URL))
			if t.Ollama.Model == "" {
				errs = append(errs, errors.New("ollama: model is not configured"))
			}
		case "libretranslate":
			errs = append(errs, checkURL("libretranslate: url", t.LibreTranslate.URL))
			if t.LibreTranslate.APIKey == "" {
				warnings = append(warnings, "libretranslate: no api key configured (may be required by some instances)")
			}
			warnings = appendRange(warnings, "translation.libretranslate.alternatives", t.LibreTranslate.Alternatives, 1, 10)
		case "gemini":
			if len(t.Gemini.APIKeys) == 0 {
				errs = append(errs, errors.New("gemini: no api keys configured"))
			}
			for i, key := range t.Gemini.APIKeys {
				if strings.TrimSpace(key) == "" || strings.Contains(key, "your-gemini-api-key") {
					errs = append(errs, fmt.Errorf("gemini: api key #%d is not configured or contains placeholder text", i+1))
				}
			}
		case "openai":
			key := t.OpenAI.APIKey
			if key == "" || strings.Contains(key, "sk-...") || strings.Contains(key, "your-api-key") {
				errs = append(errs, errors.New("openai: api key is not configured or contains placeholder text"))
			}
			errs = append(errs, checkURL("openai: base_url", t.OpenAI.BaseURL))
		case "google":
			errs = append(errs, checkURL("google: base_url", t.Google.BaseURL))
		default:
			errs = append(errs, fmt.Errorf("invalid provider name %q, valid options: %s", name, strings.Join(KnownBackends, ", ")))
		}
	}

	warnings = appendRange(warnings, "translation.cache_expiry_seconds", t.CacheExpirySeconds, 1, 3600)
	warnings = appendRange(warnings, "translation.rate_limit_messages", t.RateLimitMessages, 1, 100)
	warnings = appendRange(warnings, "translation.rate_limit_window_seconds", t.RateLimitWindowSeconds, 1, 300)
	warnings = appendRange(warnings, "translation.min_message_length", t.MinMessageLength, 0, 100)
	warnings = appendRange(warnings, "translation.max_retries", t.MaxRetries, 0, 10)

	switch t.Detector {
	case "script", "lingua":
	default:
		errs = append(errs, fmt.Errorf("invalid detector %q, valid options: script, lingua", t.Detector))
	}

	switch t.Cache.Type {
	case "memory":
	case "redis":
		if t.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache: redis_url is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid cache type %q, valid options: memory, redis", t.Cache.Type))
	}

	switch c.Storage.Type {
	case "memory":
	case "yaml", "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage: path is required for %s storage", c.Storage.Type))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage: dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage type %q, valid options: memory, yaml, sqlite, postgres", c.Storage.Type))
	}

	return warnings, errors.Join(errs...)
}

func checkURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is not configured", field)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: invalid url %q", field, raw)
	}
	return nil
}

func appendRange(warnings []string, key string, value, lo, hi int) []string {
	if value < lo || value > hi {
		return append(warnings, fmt.Sprintf("setting %s value %d is outside recommended range [%d-%d]", key, value, lo, hi))
	}
	return warnings
}
