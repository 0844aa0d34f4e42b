// Package provider implements the translation backends: Ollama, LibreTranslate,
// Gemini, OpenAI and the Google gtx endpoint.
package provider

import (
	translator "github.com/mc-mysterria/mysterria-translator-sub000"
)

// Backend names as they appear in configuration.
const (
	NameOllama         = "ollama"
	NameLibreTranslate = "libretranslate"
	NameGemini         = "gemini"
	NameOpenAI         = "openai"
	NameGoogle         = "google"
)

// Client is the interface for translation backends.
// This is an alias to the main package interface for convenience.
type Client = translator.Client

// RateLimitError is an alias to the main package type.
type RateLimitError = translator.RateLimitError

// BackendError is an alias to the main package type.
type BackendError = translator.BackendError

// KeyChecker reports whether one API key of a backend is suspended.
// *translator.SuspensionRegistry satisfies it.
type KeyChecker interface {
	IsKeySuspended(backend, keyID string) bool
}
