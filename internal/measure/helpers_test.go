package measure

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/plexsphere/plexapm/internal/faults"
	"github.com/plexsphere/plexapm/internal/sample"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

// mockSink records every payload handed to Send.
type mockSink struct {
	mu       sync.Mutex
	sent     []sentPayload
	panicMsg string
}

type sentPayload struct {
	Path    string
	Payload any
}

func (s *mockSink) Send(path string, payload any) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentPayload{Path: path, Payload: payload})
}

func (s *mockSink) all() []sentPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentPayload(nil), s.sent...)
}

func (s *mockSink) requests(t *testing.T) []sample.RequestSample {
	t.Helper()
	var out []sample.RequestSample
	for _, p := range s.all() {
		if p.Path != sample.PathRequests {
			continue
		}
		out = append(out, p.Payload.(sample.RequestPayload).Request)
	}
	return out
}

func (s *mockSink) jobs(t *testing.T) []sample.JobSample {
	t.Helper()
	var out []sample.JobSample
	for _, p := range s.all() {
		if p.Path != sample.PathJobs {
			continue
		}
		out = append(out, p.Payload.(sample.JobPayload).Job)
	}
	return out
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(ms int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Duration(ms) * time.Millisecond)
}

type capturingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, r.Message)
	return nil
}

func (h *capturingHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *capturingHandler) WithGroup(_ string) slog.Handler      { return h }

func (h *capturingHandler) has(msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.messages {
		if m == msg {
			return true
		}
	}
	return false
}

// newTestTracker returns a Tracker wired to a mock sink and a fake clock.
func newTestTracker(ignored ...string) (*Tracker, *mockSink, *fakeClock) {
	sink := &mockSink{}
	clock := newFakeClock()
	capturer := faults.NewCapturer("", faults.NewIgnoreSet(ignored...), nil)
	tr := NewTracker(Config{}, capturer, sink, nil, discardLogger())
	tr.now = clock.Now
	return tr, sink, clock
}
