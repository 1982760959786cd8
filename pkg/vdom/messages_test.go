package vdom

import (
	"sync"
	"testing"
	"time"
)

func TestMessagesPushDrain(t *testing.T) {
	m := NewMessages[int]()
	if got := m.Drain(); len(got) != 0 {
		t.Errorf("Drain() on empty pool = %v", got)
	}

	m.Push(1)
	m.Push(2)
	m.Push(3)
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}

	got := m.Drain()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("Drain() = %v, want [1 2 3]", got)
	}
	if m.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", m.Len())
	}
}

func TestMessagesReadyCoalesces(t *testing.T) {
	m := NewMessages[string]()

	select {
	case <-m.Ready():
		t.Fatal("Ready() signalled before any Push")
	default:
	}

	m.Push("a")
	m.Push("b")

	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready() not signalled after Push")
	}

	select {
	case <-m.Ready():
		t.Fatal("Ready() should coalesce pushes into one signal")
	default:
	}

	if got := m.Drain(); len(got) != 2 {
		t.Errorf("Drain() = %v, want two messages", got)
	}
}

func TestMessagesConcurrentPush(t *testing.T) {
	m := NewMessages[int]()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Push(w*100 + i)
			}
		}(w)
	}

	drained := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

loop:
	for {
		select {
		case <-m.Ready():
			drained += len(m.Drain())
		case <-done:
			break loop
		}
	}
	drained += len(m.Drain())

	if drained != 1000 {
		t.Errorf("drained %d messages, want 1000", drained)
	}
}
