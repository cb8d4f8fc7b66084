package dispatch

import (
	"context"
	"sync"
	"time"
)

// mockCall records a single PostJSON invocation.
type mockCall struct {
	Path string
	Body any
}

// mockSender records PostJSON calls. When gate is non-nil every call blocks
// until it is closed.
type mockSender struct {
	mu    sync.Mutex
	calls []mockCall
	err   error
	delay time.Duration
	gate  chan struct{}
	panic string

	active    int
	maxActive int
}

func (m *mockSender) PostJSON(_ context.Context, path string, body any, _ any) error {
	m.mu.Lock()
	m.active++
	m.maxActive = max(m.maxActive, m.active)
	gate, delay, perr := m.gate, m.delay, m.panic
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.calls = append(m.calls, mockCall{Path: path, Body: body})
		m.mu.Unlock()
	}()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if perr != "" {
		panic(perr)
	}
	return m.err
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockSender) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *mockSender) peak() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}
