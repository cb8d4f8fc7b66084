package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Sender abstracts the collector API for testability.
type Sender interface {
	PostJSON(ctx context.Context, path string, body any, result any) error
}

// Dispatcher sends payloads asynchronously and keeps a registry of
// transmissions that have not completed yet.
type Dispatcher struct {
	cfg     Config
	sender  Sender
	metrics *Metrics
	logger  *slog.Logger
	sem     *semaphore.Weighted

	mu       sync.Mutex
	wg       sync.WaitGroup
	nextID   uint64
	inFlight map[uint64]string // transmission id → resource path
	closed   bool
}

// New creates a Dispatcher. Config defaults are applied automatically; a nil
// metrics value selects unregistered metrics.
func New(cfg Config, sender Sender, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	cfg.ApplyDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		cfg:      cfg,
		sender:   sender,
		metrics:  metrics,
		logger:   logger.With("component", "dispatch"),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		inFlight: make(map[uint64]string),
	}
}

// Send schedules payload for transmission to path and returns immediately.
// The transmission is registered before Send returns, so a following Drain
// always waits for it. After Close, payloads are dropped.
func (d *Dispatcher) Send(path string, payload any) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.metrics.Dropped.WithLabelValues(path).Inc()
		d.logger.Warn("sample dropped, dispatcher closed", "resource", path)
		return
	}
	d.nextID++
	id := d.nextID
	d.inFlight[id] = path
	d.wg.Add(1)
	d.mu.Unlock()
	d.metrics.InFlight.Inc()

	go func() {
		defer d.wg.Done()
		defer d.deregister(id)
		d.transmit(path, payload)
	}()
}

// transmit posts one payload. Failures and panics are logged and counted;
// nothing is retried.
func (d *Dispatcher) transmit(path string, payload any) {
	defer func() {
		if v := recover(); v != nil {
			d.metrics.Failed.WithLabelValues(path).Inc()
			d.logger.Error("transmission panicked",
				"resource", path,
				"error", fmt.Sprint(v),
				"stack", string(debug.Stack()),
			)
		}
	}()

	// Background never expires, so Acquire only returns once a slot is free.
	_ = d.sem.Acquire(context.Background(), 1)
	defer d.sem.Release(1)

	if err := d.sender.PostJSON(context.Background(), path, payload, nil); err != nil {
		d.metrics.Failed.WithLabelValues(path).Inc()
		d.logger.Warn("transmission failed", "resource", path, "error", err)
		return
	}
	d.metrics.Sent.WithLabelValues(path).Inc()
	d.logger.Debug("sample sent", "resource", path)
}

func (d *Dispatcher) deregister(id uint64) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
	d.metrics.InFlight.Dec()
}

// InFlight returns the number of registered transmissions.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inFlight)
}

// Drain blocks until every registered transmission has completed or ctx is
// done. It returns ctx.Err() in the latter case.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.mu.Lock()
		pending := len(d.inFlight)
		d.mu.Unlock()
		d.logger.Warn("drain interrupted", "pending", pending, "error", ctx.Err())
		return ctx.Err()
	}
}

// Close stops accepting payloads and drains the registered transmissions
// like Drain. Calling Close again only drains.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.Drain(ctx)
}
