// Package app wires all Vocalhost subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore, WithMetrics).
// When an option is not provided, New creates real implementations from the
// config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocalhost/vocalhost/internal/config"
	"github.com/vocalhost/vocalhost/internal/dialog"
	"github.com/vocalhost/vocalhost/internal/health"
	"github.com/vocalhost/vocalhost/internal/httpapi"
	"github.com/vocalhost/vocalhost/internal/observe"
	"github.com/vocalhost/vocalhost/internal/realtime"
	"github.com/vocalhost/vocalhost/internal/session"
	"github.com/vocalhost/vocalhost/pkg/provider/llm"
	"github.com/vocalhost/vocalhost/pkg/provider/stt"
	"github.com/vocalhost/vocalhost/pkg/provider/tts"
	"github.com/vocalhost/vocalhost/pkg/transcript"
	"github.com/vocalhost/vocalhost/pkg/transcript/memstore"
	"github.com/vocalhost/vocalhost/pkg/transcript/postgres"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// Providers holds the conversation pipeline backends. Nil slots mean the
// capability is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM generates assistant replies. Required for conversations to work.
	LLM llm.Provider

	// LLMBackend is the configured provider name ("groq", "openai", ...).
	// It selects the sampling profile in the dialog layer.
	LLMBackend string

	// STT transcribes voice input. Nil rejects voice turns.
	STT stt.Provider

	// STTBackend is the configured provider name ("whisper", "deepgram").
	// It labels transcription metrics.
	STTBackend string

	// TTS holds the initialised synthesis backends. Nil or empty means
	// text-only responses.
	TTS *tts.Bank
}

// Store is the combined persistence contract the server needs.
type Store interface {
	transcript.Store
	transcript.UserStore
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store     Store
	responder *dialog.Responder
	hub       *realtime.Hub
	orch      *session.Orchestrator
	metrics   *observe.Metrics
	logLevel  *slog.LevelVar

	handler http.Handler
	srv     *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a transcript store instead of creating one from config.
func WithStore(s Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metrics instruments. When omitted, the server runs
// without metrics recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar injects the level var backing the process logger so config
// hot-reloads can adjust verbosity.
func WithLogLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.responder = dialog.NewResponder(providers.LLM, providers.LLMBackend)
	a.hub = realtime.NewHub(a.metrics)
	a.orch = session.New(a.store, a.responder, providers.STT, providers.STTBackend, providers.TTS, a.hub, a.metrics)

	a.handler = a.buildHandler()
	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return a, nil
}

// initStore connects to PostgreSQL when a DSN is configured, otherwise falls
// back to the in-memory store.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		slog.Warn("no database configured, using in-memory transcript store")
		a.store = memstore.New()
		return nil
	}

	store, err := postgres.New(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	slog.Info("connected to transcript database")
	return nil
}

// buildHandler assembles the HTTP routing tree. The REST API goes through the
// observability middleware; the WebSocket endpoint, probes, and the metrics
// scrape are mounted outside it.
func (a *App) buildHandler() http.Handler {
	api := http.NewServeMux()
	httpapi.New(a.store, a.store, a.orch).Register(api)

	root := http.NewServeMux()
	root.Handle("/api/", observe.Middleware(a.metrics)(api))
	root.Handle("GET /ws", realtime.NewServer(a.hub, a.orch, a.metrics))
	root.Handle("GET /metrics", promhttp.Handler())
	a.healthHandler().Register(root)

	return root
}

// healthHandler builds readiness checks for the configured dependencies.
func (a *App) healthHandler() *health.Handler {
	var checkers []health.Checker
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.Database(p))
	}
	checkers = append(checkers,
		health.Capability("llm", a.responder.Available),
		health.Capability("stt", func() bool { return a.providers.STT != nil }),
		health.Capability("tts", func() bool {
			return a.providers.TTS != nil && a.providers.TTS.Available()
		}),
	)
	return health.New(checkers...)
}

// Handler returns the fully assembled HTTP handler. Exposed for tests.
func (a *App) Handler() http.Handler {
	return a.handler
}

// ApplyConfig applies the hot-reloadable parts of a reloaded configuration.
// Wired as the config watcher's onChange callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.TTSDefaultChanged && a.providers.TTS != nil {
		a.providers.TTS.SetDefault(d.NewTTSDefault)
		slog.Info("default TTS backend changed", "backend", d.NewTTSDefault)
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsCfg := a.cfg.Server.TLS; tlsCfg != nil {
			err = a.srv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server listening", "addr", a.cfg.Server.ListenAddr, "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops the HTTP server and tears down subsystems in order. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if err := a.srv.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
