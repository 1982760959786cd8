package vdom

import "sync"

// Messages is the shared pool of pending application messages.
//
// Any number of listener callbacks may Push concurrently; the application
// loop Drains. The mutex is held only for the duration of each operation.
type Messages[M any] struct {
	mu    sync.Mutex
	queue []M
	ready chan struct{}
}

// NewMessages creates an empty pool.
func NewMessages[M any]() *Messages[M] {
	return &Messages[M]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends a message and signals Ready.
func (m *Messages[M]) Push(msg M) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns all pending messages in push order.
func (m *Messages[M]) Drain() []M {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

// Len returns the number of pending messages.
func (m *Messages[M]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Ready is signalled after a Push. Signals coalesce: one receive may cover
// several pushes, so receivers should Drain rather than count.
func (m *Messages[M]) Ready() <-chan struct{} {
	return m.ready
}
