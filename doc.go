// Package translator is the orchestration core of a chat translation service.
//
// A Manager gates each message (length, language, per-actor rate), serves
// repeats from a TTL cache, and hands the rest to a FallbackHandler. The
// handler walks an ordered list of backends, retrying transient failures with
// linear backoff, suspending backends (or single API keys) that answer with a
// rate limit, and emitting fallback and recovery notices with a shared
// cooldown.
//
// Basic usage:
//
//	import (
//	    "context"
//	    translator "github.com/mc-mysterria/mysterria-translator-sub000"
//	    "github.com/mc-mysterria/mysterria-translator-sub000/cache"
//	    "github.com/mc-mysterria/mysterria-translator-sub000/provider"
//	)
//
//	func main() {
//	    executor := translator.NewExecutor()
//	    executor.Register("gemini", provider.NewGeminiClient(provider.GeminiConfig{
//	        APIKeys: []string{os.Getenv("GEMINI_KEY")},
//	    }))
//	    executor.Register("google", provider.NewGoogleClient(provider.GoogleConfig{}))
//
//	    chain := translator.NewFallbackHandler(executor,
//	        translator.NewSuspensionRegistry(), []string{"gemini", "google"})
//	    m := translator.NewManager(chain,
//	        translator.WithCache(cache.NewInMemoryCache(30)))
//
//	    out := m.Translate(context.Background(), translator.Request{
//	        Text:       "привіт",
//	        TargetLang: "en_us",
//	        ActorID:    "steve",
//	    })
//	    if s, ok := out.(*translator.Success); ok {
//	        fmt.Println(s.Text) // hello
//	    }
//	}
package translator
