// Package gateway is the HTTP front of the legacy ERP.
//
// DESIGN: One Gateway per process, built with explicit stores:
//   - session.Store    legacy cookie + CSRF token per bearer token (read-only here)
//   - cache.Layer      per-user memoization of idempotent GET reads
//   - rewrite.Rewriter HTML resource URL rewriting toward the browser-facing host
//
// Routes:
//
//	/api/erp/{slug...}   proxied to {legacy.url}{legacy.api_path}/{slug}
//	/api/erp-session     registration of legacy session artifacts
//	/health, /stats, /metrics
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/etendo/erp-gateway/internal/auth"
	"github.com/etendo/erp-gateway/internal/cache"
	"github.com/etendo/erp-gateway/internal/config"
	"github.com/etendo/erp-gateway/internal/monitoring"
	"github.com/etendo/erp-gateway/internal/rewrite"
	"github.com/etendo/erp-gateway/internal/session"
)

// Gateway proxies browser calls to the legacy ERP server.
type Gateway struct {
	config     *config.Config
	sessions   session.Store
	cache      *cache.Layer
	rewriter   *rewrite.Rewriter
	apiBase    string
	httpClient *http.Client
	metrics    *monitoring.MetricsCollector
	tracker    *monitoring.Tracker
	server     *http.Server
}

// Option customizes a Gateway at construction time.
type Option func(*Gateway)

// WithSessionStore injects the session store instead of building one from config.
func WithSessionStore(s session.Store) Option {
	return func(g *Gateway) { g.sessions = s }
}

// WithCacheBackend injects the cache backend instead of building one from config.
func WithCacheBackend(b cache.Backend) Option {
	return func(g *Gateway) { g.cache = cache.New(b, g.cacheTTL()) }
}

// WithHTTPClient replaces the outbound legacy client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// New creates a gateway. Stores not injected through options are built from
// cfg; the caller owns the result and must Close it.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	g := &Gateway{
		config:   cfg,
		rewriter: rewrite.New(cfg.Legacy.BrowserBase()),
		apiBase:  cfg.Legacy.APIBase(),
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   config.DefaultDialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		metrics: monitoring.NewMetricsCollector(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.sessions == nil {
		store, err := newSessionStore(cfg.Session)
		if err != nil {
			return nil, err
		}
		g.sessions = store
	}
	if g.cache == nil {
		backend, err := newCacheBackend(cfg.Cache)
		if err != nil {
			_ = g.sessions.Close()
			return nil, err
		}
		g.cache = cache.New(backend, g.cacheTTL())
	}

	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:     cfg.Monitoring.TelemetryPath != "" || cfg.Monitoring.TelemetryStdout,
		LogPath:     cfg.Monitoring.TelemetryPath,
		LogToStdout: cfg.Monitoring.TelemetryStdout,
	})
	if err != nil {
		_ = g.Close()
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	g.tracker = tracker

	g.metrics.RegisterGauge("sessions", "Registered legacy sessions", func() float64 {
		return float64(g.sessions.Len())
	})
	g.metrics.RegisterGauge("cache_entries", "Live cache entries (-1 when unknown)", func() float64 {
		return float64(g.cache.Len())
	})

	g.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           g.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       90 * time.Second,
	}

	log.Info().
		Str("legacy_api", g.apiBase).
		Str("browser_base", g.rewriter.Base()).
		Str("sessions", cfg.Session.Backend).
		Str("cache", cacheDescription(cfg.Cache)).
		Msg("gateway initialized")

	return g, nil
}

func (g *Gateway) cacheTTL() time.Duration {
	if !g.config.Cache.Enabled {
		return 0
	}
	return g.config.Cache.TTL
}

func cacheDescription(c config.CacheConfig) string {
	if !c.Enabled || c.TTL <= 0 {
		return "disabled"
	}
	return c.Backend
}

func newSessionStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := session.NewSQLiteStore(cfg.Path, cfg.TTL, cfg.CleanupInterval)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		return store, nil
	default:
		return session.NewMemoryStore(cfg.TTL, cfg.CleanupInterval), nil
	}
}

func newCacheBackend(cfg config.CacheConfig) (cache.Backend, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case config.BackendRedis:
		backend, err := cache.NewRedisBackend(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("cache backend: %w", err)
		}
		return backend, nil
	default:
		return cache.NewMemoryBackend(cfg.MaxEntries, cfg.CleanupInterval), nil
	}
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(RouteERP, g.handleProxy)
	mux.Handle(RouteSession, auth.RequireBearer(g.handleMissingToken, http.HandlerFunc(g.handleSession)))
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/stats", g.handleStats)
	if g.config.Monitoring.MetricsEnabled {
		mux.Handle("/metrics", g.metrics.Handler())
	}
	return recovery(mux)
}

// Metrics returns the gateway metrics collector.
func (g *Gateway) Metrics() *monitoring.MetricsCollector { return g.metrics }

// Start serves until Shutdown is called.
func (g *Gateway) Start() error {
	log.Info().Str("addr", g.server.Addr).Msg("gateway listening")
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

// Close releases the stores and the telemetry log.
func (g *Gateway) Close() error {
	var errs []error
	if g.sessions != nil {
		errs = append(errs, g.sessions.Close())
	}
	if g.cache != nil {
		errs = append(errs, g.cache.Close())
	}
	if g.tracker != nil {
		errs = append(errs, g.tracker.Close())
	}
	return errors.Join(errs...)
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panic")
				writeError(w, http.StatusInternalServerError, msgLegacyUnreachable)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
