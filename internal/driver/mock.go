package driver

import (
	"context"
	"sync"

	"github.com/zulandar/switchboard/internal/registry"
)

// Mock is a scripted Driver for tests. Each Deliver call consumes the next
// scripted outcome; once the script is exhausted, calls succeed.
type Mock struct {
	mu      sync.Mutex
	script  []error
	calls   []MockCall
	blockCh chan struct{} // optional: hold deliveries open for concurrency tests
}

// MockCall records one Deliver invocation.
type MockCall struct {
	Coords registry.Coordinates
	Text   string
}

// NewMock creates a Mock whose first len(script) deliveries return the given
// outcomes in order (nil for success).
func NewMock(script ...error) *Mock {
	return &Mock{script: script}
}

// Block makes subsequent deliveries wait until Unblock is called, for tests
// that need an in-flight delivery.
func (m *Mock) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockCh = make(chan struct{})
}

// Unblock releases deliveries held by Block.
func (m *Mock) Unblock() {
	m.mu.Lock()
	ch := m.blockCh
	m.blockCh = nil
	m.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Deliver records the call and returns the next scripted outcome.
func (m *Mock) Deliver(ctx context.Context, coords registry.Coordinates, text string) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Coords: coords, Text: text})
	var next error
	if len(m.script) > 0 {
		next = m.script[0]
		m.script = m.script[1:]
	}
	ch := m.blockCh
	m.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return &DeliveryError{Reason: ReasonTimeout, Err: ctx.Err()}
		}
	}
	return next
}

// Calls returns a copy of all recorded Deliver invocations.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Deliver invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
