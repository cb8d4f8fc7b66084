package recent

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/plexsphere/plexapm/internal/sample"
)

func names(samples []sample.RequestSample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Name
	}
	return out
}

func TestRing_NewestFirst(t *testing.T) {
	r := NewRing(3)
	for _, n := range []string{"a", "b"} {
		r.Push(sample.RequestSample{Name: n})
	}
	if got := names(r.Snapshot()); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Snapshot = %v, want [b a]", got)
	}
}

func TestRing_EvictsOldest(t *testing.T) {
	r := NewRing(3)
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		r.Push(sample.RequestSample{Name: n})
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	got := names(r.Snapshot())
	want := []string{"e", "d", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot = %v, want %v", got, want)
		}
	}
}

func TestRing_DefaultCapacity(t *testing.T) {
	r := NewRing(0)
	for range DefaultCapacity + 10 {
		r.Push(sample.RequestSample{})
	}
	if r.Len() != DefaultCapacity {
		t.Errorf("Len = %d, want %d", r.Len(), DefaultCapacity)
	}
}

func TestRing_ConcurrentPush(t *testing.T) {
	r := NewRing(10)
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				r.Push(sample.RequestSample{Name: "x"})
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()
	if r.Len() != 10 {
		t.Errorf("Len = %d, want 10", r.Len())
	}
}

func TestRing_Handler(t *testing.T) {
	r := NewRing(5)
	r.Push(sample.RequestSample{Name: "GET /users", Runtime: 12.5})
	h := r.Handler(slog.Default())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got []sample.RequestSample
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Name != "GET /users" || got[0].Runtime != 12.5 {
		t.Errorf("body = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}
