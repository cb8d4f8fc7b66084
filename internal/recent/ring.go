// Package recent keeps the last finalized request samples in memory for local
// inspection.
package recent

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/plexsphere/plexapm/internal/sample"
)

// DefaultCapacity is the number of samples kept when none is configured.
const DefaultCapacity = 100

// Ring is a fixed-size buffer of request samples. Once full, each Push
// overwrites the oldest entry. It is safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	items []sample.RequestSample
	next  int
	full  bool
}

// NewRing creates a Ring holding up to capacity samples. A capacity below 1
// selects DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{items: make([]sample.RequestSample, capacity)}
}

// Push stores s, evicting the oldest sample when the ring is full.
func (r *Ring) Push(s sample.RequestSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.next] = s
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

// Len returns the number of stored samples.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.items)
	}
	return r.next
}

// Snapshot returns the stored samples, newest first.
func (r *Ring) Snapshot() []sample.RequestSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if r.full {
		n = len(r.items)
	}
	out := make([]sample.RequestSample, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.items)) % len(r.items)
		out = append(out, r.items[idx])
	}
	return out
}

// Handler serves the snapshot as a JSON array.
func (r *Ring) Handler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(r.Snapshot()); err != nil {
			logger.Warn("encode recent requests failed", "component", "recent", "error", err)
		}
	})
}
