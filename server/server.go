// Package server exposes the translation manager over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/mc-mysterria/mysterria-translator-sub000/langstore"
)

// DefaultRequestTimeout bounds every request except the notice stream.
const DefaultRequestTimeout = 30 * time.Second

// Server routes HTTP requests to a Manager.
type Server struct {
	manager *translator.Manager
	langs   langstore.Store
	notices *translator.Broadcaster
	logger  zerolog.Logger
	timeout time.Duration

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLangStore enables the actor language endpoints and lets translate
// requests omit the locale for known actors.
func WithLangStore(store langstore.Store) Option {
	return func(s *Server) {
		s.langs = store
	}
}

// WithBroadcaster enables GET /v1/notices. The broadcaster must also be the
// fallback handler's notifier for anything to arrive.
func WithBroadcaster(b *translator.Broadcaster) Option {
	return func(s *Server) {
		s.notices = b
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New builds the router.
func New(manager *translator.Manager, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		logger:  zerolog.Nop(),
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/notices", s.handleNotices)

	r.Group(func(r chi.Router) {
		r.Use(TimeoutMiddleware(s.timeout))

		r.Post("/v1/translate", s.handleTranslate)
		r.Post("/v1/translate/batch", s.handleBatch)
		r.Get("/v1/detect", s.handleDetect)

		r.Get("/v1/backends", s.handleBackends)
		r.Put("/v1/backends", s.handleUpdateBackends)
		r.Delete("/v1/backends/{name}/suspensions", s.handleUnsuspend)

		r.Delete("/v1/cache", s.handleClearCache)

		r.Get("/v1/actors/{id}/lang", s.handleGetLang)
		r.Put("/v1/actors/{id}/lang", s.handlePutLang)
		r.Delete("/v1/actors/{id}/lang", s.handleDeleteLang)
	})

	s.handler = otelhttp.NewHandler(r, "mysterria-translator")
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
