package translator

// ActorID identifies the party a translation is produced for (typically a player).
type ActorID string

// AutoDetect as a source language asks the core to detect the language itself.
const AutoDetect = "auto"

// Request is a single translation request. It is immutable once built.
type Request struct {
	Text       string
	SourceLang string // language code, or "" / AutoDetect to detect from Text
	TargetLang string // the actor's locale, normalised with TargetFor
	ActorID    ActorID
}

// Outcome is the result of Manager.Translate. It is exactly one of
// *Success, *NoTranslationNeeded, *RateLimited or *Failed.
type Outcome interface {
	outcome()
}

// Success carries a translated text.
type Success struct {
	Text     string
	Original string
	Source   Language
	Target   Language
	Backend  string // empty when served from cache
	Cached   bool
}

// NoTranslationNeeded means the text was left alone, with the reason why.
type NoTranslationNeeded struct {
	Reason string
}

// RateLimited means the actor exceeded its admission window.
type RateLimited struct{}

// Failed means every backend failed or the call was abandoned.
type Failed struct {
	Reason string
}

func (*Success) outcome()             {}
func (*NoTranslationNeeded) outcome() {}
func (*RateLimited) outcome()         {}
func (*Failed) outcome()              {}

// Reasons reported by NoTranslationNeeded and Failed.
const (
	ReasonTooShort           = "Message too short"
	ReasonNotNeeded          = "No translation needed"
	ReasonServiceUnavailable = "Translation service unavailable"
)
