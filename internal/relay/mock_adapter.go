package relay

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter implements Adapter for testing. It records posted events.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	posted    []Event
	failPost  error
}

// NewMockAdapter creates a MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// FailPosts makes subsequent Post calls return err.
func (m *MockAdapter) FailPosts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPost = err
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Post records the event.
func (m *MockAdapter) Post(ctx context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock adapter: not connected")
	}
	if m.failPost != nil {
		return m.failPost
	}
	m.posted = append(m.posted, evt)
	return nil
}

// Close marks the adapter as closed.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.connected = false
	return nil
}

// Posted returns a copy of all recorded events.
func (m *MockAdapter) Posted() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.posted))
	copy(out, m.posted)
	return out
}
