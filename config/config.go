// Package config loads service configuration from a YAML file and MT_*
// environment variables.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. MT_TRANSLATION__MAX_RETRIES
// sets translation.max_retries.
const EnvPrefix = "MT_"

// Config is the root configuration.
type Config struct {
	Debug       bool              `koanf:"debug"`
	Log         LogConfig         `koanf:"log"`
	Server      ServerConfig      `koanf:"server"`
	Translation TranslationConfig `koanf:"translation"`
	Storage     StorageConfig     `koanf:"storage"`
	Prompts     map[string]string `koanf:"prompts"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, console
}

type ServerConfig struct {
	Addr                   string `koanf:"addr"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// TranslationConfig holds the translation pipeline settings.
type TranslationConfig struct {
	Enabled bool `koanf:"enabled"`
	// Provider is the comma-separated backend order, e.g. "gemini,openai,google".
	Provider                   string                 `koanf:"provider"`
	AutoSource                 bool                   `koanf:"auto_source"`
	Detector                   string                 `koanf:"detector"` // script, lingua
	DetectorLanguages          []string               `koanf:"detector_languages"`
	CacheExpirySeconds         int                    `koanf:"cache_expiry_seconds"`
	Cache                      CacheConfig            `koanf:"cache"`
	RateLimitMessages          int                    `koanf:"rate_limit_messages"`
	RateLimitWindowSeconds     int                    `koanf:"rate_limit_window_seconds"`
	MinMessageLength           int                    `koanf:"min_message_length"`
	MaxRetries                 int                    `koanf:"max_retries"`
	RateLimitSuspensionMinutes int                    `koanf:"rate_limit_suspension_minutes"`
	NoticeCooldownMinutes      int                    `koanf:"notice_cooldown_minutes"`
	Ollama                     OllamaConfig           `koanf:"ollama"`
	LibreTranslate             LibreTranslateConfig   `koanf:"libretranslate"`
	Gemini                     GeminiConfig           `koanf:"gemini"`
	OpenAI                     OpenAIConfig           `koanf:"openai"`
	Google                     GoogleConfig           `koanf:"google"`
	Limits                     map[string]LimitConfig `koanf:"limits"`
}

type CacheConfig struct {
	Type      string `koanf:"type"` // memory, redis
	RedisURL  string `koanf:"redis_url"`
	KeyPrefix string `koanf:"key_prefix"`
}

type OllamaConfig struct {
	URL            string `koanf:"url"`
	Model          string `koanf:"model"`
	APIKey         string `koanf:"api_key"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type LibreTranslateConfig struct {
	URL            string `koanf:"url"`
	APIKey         string `koanf:"api_key"`
	Alternatives   int    `koanf:"alternatives"`
	Format         string `koanf:"format"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type GeminiConfig struct {
	APIKeys        []string `koanf:"api_keys"`
	Model          string   `koanf:"model"`
	IncludeContext bool     `koanf:"include_context"`
	TimeoutSeconds int      `koanf:"timeout_seconds"`
}

type OpenAIConfig struct {
	APIKey             string  `koanf:"api_key"`
	BaseURL            string  `koanf:"base_url"`
	Model              string  `koanf:"model"`
	Temperature        float64 `koanf:"temperature"`
	UseTemperature     bool    `koanf:"use_temperature"`
	TopP               float64 `koanf:"top_p"`
	UseTopP            bool    `koanf:"use_top_p"`
	MaxTokens          int     `koanf:"max_tokens"`
	UseLegacyMaxTokens bool    `koanf:"use_legacy_max_tokens"`
	TimeoutSeconds     int     `koanf:"timeout_seconds"`
}

type GoogleConfig struct {
	BaseURL        string `koanf:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// LimitConfig adds outbound protection around one backend. Zero values
// disable the corresponding wrapper.
type LimitConfig struct {
	RequestsPerMinute     int `koanf:"requests_per_minute"`
	Burst                 int `koanf:"burst"`
	BreakerFailures       int `koanf:"breaker_failures"`
	BreakerTimeoutSeconds int `koanf:"breaker_timeout_seconds"`
}

type StorageConfig struct {
	Type string `koanf:"type"` // memory, yaml, sqlite, postgres
	Path string `koanf:"path"`
	DSN  string `koanf:"dsn"`
}

var defaults = map[string]any{
	"log.level":                                  "info",
	"log.format":                                 "json",
	"server.addr":                                ":8080",
	"server.shutdown_timeout_seconds":            10,
	"translation.enabled":                        true,
	"translation.provider":                       "ollama",
	"translation.detector":                       "script",
	"translation.cache_expiry_seconds":           30,
	"translation.cache.type":                     "memory",
	"translation.rate_limit_messages":            2,
	"translation.rate_limit_window_seconds":      10,
	"translation.min_message_length":             3,
	"translation.max_retries":                    2,
	"translation.rate_limit_suspension_minutes":  20,
	"translation.notice_cooldown_minutes":        15,
	"translation.ollama.url":                     "http://localhost:11434",
	"translation.ollama.model":                   "llama3.1",
	"translation.ollama.timeout_seconds":         10,
	"translation.libretranslate.url":             "http://localhost:5000/translate",
	"translation.libretranslate.alternatives":    3,
	"translation.libretranslate.format":          "text",
	"translation.libretranslate.timeout_seconds": 10,
	"translation.gemini.model":                   "gemini-2.0-flash",
	"translation.gemini.include_context":         true,
	"translation.gemini.timeout_seconds":         15,
	"translation.openai.base_url":                "https://api.openai.com/v1",
	"translation.openai.model":                   "gpt-4o-mini",
	"translation.openai.temperature":             0.3,
	"translation.openai.use_temperature":         true,
	"translation.openai.top_p":                   0.9,
	"translation.openai.use_top_p":               true,
	"translation.openai.max_tokens":              1000,
	"translation.openai.timeout_seconds":         30,
	"translation.google.base_url":                "https://translate.googleapis.com/translate_a/single",
	"translation.google.timeout_seconds":         10,
	"storage.type":                               "yaml",
	"storage.path":                               "langs.yml",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (if it exists), applies MT_ environment overrides and fills
// defaults for anything left unset. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.expandSecrets()
	return &cfg, nil
}

func (c *Config) expandSecrets() {
	t := &c.Translation
	t.Ollama.APIKey = substituteEnvVars(t.Ollama.APIKey)
	t.LibreTranslate.APIKey = substituteEnvVars(t.LibreTranslate.APIKey)
	t.OpenAI.APIKey = substituteEnvVars(t.OpenAI.APIKey)
	for i := range t.Gemini.APIKeys {
		t.Gemini.APIKeys[i] = substituteEnvVars(t.Gemini.APIKeys[i])
	}
	t.Cache.RedisURL = substituteEnvVars(t.Cache.RedisURL)
	c.Storage.DSN = substituteEnvVars(c.Storage.DSN)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Backends returns the configured backend order: lowercased, trimmed, with
// empty entries dropped.
func (t TranslationConfig) Backends() []string {
	var names []string
	for _, p := range strings.Split(t.Provider, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}
