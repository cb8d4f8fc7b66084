package plexapm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plexsphere/plexapm/internal/api"
	"github.com/plexsphere/plexapm/internal/dispatch"
	"github.com/plexsphere/plexapm/internal/faults"
	"github.com/plexsphere/plexapm/internal/filter"
	"github.com/plexsphere/plexapm/internal/measure"
	"github.com/plexsphere/plexapm/internal/recent"
	"github.com/plexsphere/plexapm/internal/state"
)

// Sender posts JSON payloads to the collector. The default is an HTTP client
// built from Config.
type Sender interface {
	PostJSON(ctx context.Context, path string, body any, result any) error
}

// Options carries the non-serializable dependencies of a Client.
type Options struct {
	// Logger receives the client's logs. When nil, a text logger on stderr
	// at Config.LogLevel is used.
	Logger *slog.Logger

	// Registry receives the self metrics. When nil, a private registry is
	// created; it is served by MetricsHandler either way.
	Registry *prometheus.Registry

	// Sender replaces the HTTP transport.
	Sender Sender

	// Version is reported in the User-Agent header.
	Version string
}

// Client measures executions and ships samples to the collector. It is safe
// for concurrent use.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	dispatcher *dispatch.Dispatcher
	tracker    *measure.Tracker
	ring       *recent.Ring

	mu      sync.Mutex
	plugins map[string]Plugin

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a Client. Config defaults are applied automatically.
func New(cfg Config, opts Options) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = setupLogger(cfg.LogLevel)
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	sender := opts.Sender
	if sender == nil {
		collector, err := api.NewCollector(cfg.apiConfig(), opts.Version, logger)
		if err != nil {
			return nil, fmt.Errorf("plexapm: create collector client: %w", err)
		}
		sender = collector
	}

	metrics := dispatch.NewMetrics(registry)
	dispatcher := dispatch.New(cfg.dispatchConfig(), sender, metrics, logger)
	ring := recent.NewRing(cfg.RecentSamples)
	capturer := faults.NewCapturer(cfg.AppRoot,
		faults.NewIgnoreSet(cfg.IgnoredExceptions...),
		filter.New(cfg.SensitiveParameters))

	c := &Client{
		cfg:        cfg,
		logger:     logger.With("component", "plexapm"),
		registry:   registry,
		dispatcher: dispatcher,
		tracker:    measure.NewTracker(cfg.measureConfig(), capturer, dispatcher, ring, logger),
		ring:       ring,
		plugins:    make(map[string]Plugin),
	}
	c.logger.Debug("client created",
		"api_url", cfg.APIURL,
		"app_root", cfg.AppRoot,
		"max_concurrent_sends", cfg.MaxConcurrentSends,
	)
	return c, nil
}

// setupLogger creates a slog.Logger with the given level.
func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}

// Logger returns the client's logger. Integrations derive their own from it.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Active reports whether ctx carries an execution context with a root
// measurement in progress.
func (c *Client) Active(ctx context.Context) bool {
	id, ok := state.FromContext(ctx)
	return ok && c.tracker.Active(id)
}

// Detach returns a copy of ctx bound to a fresh execution context. Work
// started with it is measured independently of the measurement in ctx.
func (c *Client) Detach(ctx context.Context) context.Context {
	return state.WithContextID(ctx, state.NewContextID())
}

// IgnoreException stops errors of the given class from being reported.
func (c *Client) IgnoreException(class string) {
	c.tracker.Capturer().IgnoreSet().Add(class)
}

// RecentRequests returns the most recently finished request samples, newest
// first.
func (c *Client) RecentRequests() []RequestSample {
	return c.ring.Snapshot()
}

// RecentHandler serves RecentRequests as JSON.
func (c *Client) RecentHandler() http.Handler {
	return c.ring.Handler(c.logger)
}

// MetricsHandler serves the client's self metrics in the Prometheus
// exposition format.
func (c *Client) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InFlight returns the number of transmissions that have not completed.
func (c *Client) InFlight() int {
	return c.dispatcher.InFlight()
}

// Close stops new measurements and waits for every pending transmission.
// Samples and errors produced afterwards, such as measurements begun before
// Close and ended after it, are dropped. Close returns early with ctx's error
// when ctx ends first. It is idempotent; later calls return the first result.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.logger.Info("draining transmissions", "in_flight", c.dispatcher.InFlight())
		if err := c.dispatcher.Close(ctx); err != nil {
			c.closeErr = fmt.Errorf("plexapm: close: %w", err)
		}
	})
	return c.closeErr
}
