package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/rs/zerolog"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/mc-mysterria/mysterria-translator-sub000/cache"
	"github.com/mc-mysterria/mysterria-translator-sub000/config"
	"github.com/mc-mysterria/mysterria-translator-sub000/langstore"
	"github.com/mc-mysterria/mysterria-translator-sub000/provider"
)

// maxParticipants caps the names passed to context-aware prompts.
const maxParticipants = 50

// app is the fully wired translation stack for one process.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	cache       translator.TranslationCache
	langs       langstore.Store
	suspensions *translator.SuspensionRegistry
	notices     *translator.Broadcaster
	fallback    *translator.FallbackHandler
	manager     *translator.Manager

	closers []func() error
}

// newApp builds every component from cfg. Background sweepers stop when ctx
// is cancelled.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	t := cfg.Translation

	resultCache, err := a.buildCache(ctx, t)
	if err != nil {
		return nil, err
	}
	a.cache = resultCache

	detector, err := buildDetector(t)
	if err != nil {
		a.Close()
		return nil, err
	}

	langs, err := langstore.Open(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open language storage: %w", err)
	}
	a.langs = langs
	a.closers = append(a.closers, langs.Close)

	a.suspensions = translator.NewSuspensionRegistry(translator.WithSuspensionLogger(logger))
	a.notices = translator.NewBroadcaster()

	executor := translator.NewExecutor(translator.WithExecutorLogger(logger))
	order := provider.Register(executor, t, provider.Deps{
		Prompts:      provider.NewPrompts(cfg.Prompts),
		Suspensions:  a.suspensions,
		Participants: a.participants,
		Logger:       logger,
	})
	if len(order) == 0 {
		logger.Warn().Str("provider", t.Provider).Msg("no translation backends registered")
	}

	a.fallback = translator.NewFallbackHandler(executor, a.suspensions, order,
		translator.WithRetryConfig(translator.RetryConfig{
			MaxRetries: t.MaxRetries,
			Backoff:    translator.LinearBackoff(time.Second),
		}),
		translator.WithSuspensionDuration(time.Duration(t.RateLimitSuspensionMinutes)*time.Minute),
		translator.WithNoticeCooldown(time.Duration(t.NoticeCooldownMinutes)*time.Minute),
		translator.WithNotifier(translator.MultiNotifier{a.notices, translator.LogNotifier(logger)}),
		translator.WithFallbackLogger(logger),
	)

	opts := []translator.ManagerOption{
		translator.WithCache(a.cache),
		translator.WithDetector(detector),
		translator.WithMinMessageLength(t.MinMessageLength),
		translator.WithAutoSource(t.AutoSource),
		translator.WithLogger(logger),
	}
	if t.RateLimitMessages > 0 && t.RateLimitWindowSeconds > 0 {
		limiter := translator.NewActorLimiter(translator.ActorLimitConfig{
			Messages: t.RateLimitMessages,
			Window:   time.Duration(t.RateLimitWindowSeconds) * time.Second,
		})
		limiter.Start(ctx)
		opts = append(opts, translator.WithActorLimiter(limiter))
	}
	a.manager = translator.NewManager(a.fallback, opts...)

	logger.Info().
		Strs("backends", order).
		Str("cache", t.Cache.Type).
		Str("detector", t.Detector).
		Str("storage", cfg.Storage.Type).
		Msg("translation stack ready")

	return a, nil
}

func (a *app) buildCache(ctx context.Context, t config.TranslationConfig) (translator.TranslationCache, error) {
	switch t.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			URL:       t.Cache.RedisURL,
			TTL:       t.CacheExpirySeconds,
			KeyPrefix: t.Cache.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		rc.WithLogger(a.logger)
		a.closers = append(a.closers, rc.Close)
		return rc, nil
	default:
		mc := cache.NewInMemoryCache(t.CacheExpirySeconds)
		mc.Start(ctx)
		a.closers = append(a.closers, mc.Close)
		return mc, nil
	}
}

func buildDetector(t config.TranslationConfig) (translator.Detector, error) {
	if t.Detector == "lingua" {
		d, err := translator.NewLinguaDetector(t.DetectorLanguages...)
		if err != nil {
			return nil, fmt.Errorf("build lingua detector: %w", err)
		}
		return d, nil
	}
	return translator.NewScriptDetector(), nil
}

// participants lists actors with a stored language, for context prompts.
func (a *app) participants() []string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	all, err := a.langs.LoadAll(ctx)
	if err != nil {
		a.logger.Debug().Err(err).Msg("participants unavailable")
		return nil
	}
	names := make([]string, 0, len(all))
	for id := range all {
		names = append(names, string(id))
	}
	sort.Strings(names)
	if len(names) > maxParticipants {
		names = names[:maxParticipants]
	}
	return names
}

// importSnapshot warms the cache from path. A missing file is not an error.
func (a *app) importSnapshot(path string) error {
	res, err := cache.NewImporter(a.cache).ImportFromFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	a.logger.Info().Str("path", path).Int("imported", res.Imported).
		Int("expired", res.Expired).Int("failed", res.Failed).Msg("cache snapshot loaded")
	return nil
}

// exportSnapshot writes the live cache entries to path.
func (a *app) exportSnapshot(path string) error {
	err := cache.NewExporter(a.cache).ExportToFile(path, map[string]string{
		"version": translator.Version,
	})
	if err != nil {
		return err
	}
	a.logger.Info().Str("path", path).Msg("cache snapshot written")
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
