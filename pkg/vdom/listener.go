package vdom

import (
	"reflect"
	"sync"

	"github.com/vango-dev/vreconcile/internal/errors"
)

var (
	// ErrAlreadyAttached is returned when a listener instance or an event
	// kind is attached to the same element twice without an intervening
	// detach.
	ErrAlreadyAttached = errors.New("R101")

	// ErrNotAttached is returned when a handle is detached twice, or when no
	// live handle exists for the listener being detached.
	ErrNotAttached = errors.New("R103")
)

// Event is a native event occurrence delivered by a backend.
type Event struct {
	Kind   string         // Event name, e.g. "click"
	Value  string         // Current value of the target, if any
	Detail map[string]any // Backend-specific payload
}

// Subscription is a live native event registration.
type Subscription interface {
	// Cancel unregisters the callback.
	Cancel() error
}

// EventTarget is a backend element that accepts native event subscriptions.
// Listen must fail (not no-op) when the element has been destroyed.
type EventTarget interface {
	Listen(kind string, fn func(Event)) (Subscription, error)
}

// Listener binds one event kind to an application message.
//
// Attach registers the listener's event kind on target; each firing
// translates the event into exactly one message and pushes it to pool.
// The returned handle must be kept for the element's lifetime and detached
// exactly once.
type Listener[M any] interface {
	Kind() string
	Attach(target EventTarget, pool *Messages[M]) (*Handle, error)
}

// Handle owns one live subscription.
//
// Callbacks run under the handle's read lock and Detach takes the write
// lock, so no message is pushed after Detach returns.
type Handle struct {
	kind string

	mu       sync.RWMutex
	sub      Subscription
	live     bool
	onDetach func()
}

// Kind returns the event kind of the subscription.
func (h *Handle) Kind() string {
	return h.kind
}

// Live reports whether the subscription is still attached.
func (h *Handle) Live() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live
}

// Detach releases the subscription. A second call returns ErrNotAttached.
func (h *Handle) Detach() error {
	h.mu.Lock()
	if !h.live {
		h.mu.Unlock()
		return errors.New("R103").WithDetailf("%s handle detached twice", h.kind)
	}
	h.live = false
	sub := h.sub
	h.sub = nil
	onDetach := h.onDetach
	h.onDetach = nil
	h.mu.Unlock()

	if onDetach != nil {
		onDetach()
	}
	if err := sub.Cancel(); err != nil {
		return errors.FromError(err, "R302").WithDetailf("cancel %s subscription", h.kind)
	}
	return nil
}

// Bind subscribes translate to kind on target and returns the owning handle.
// It is the building block for Listener implementations: translate runs on
// every firing and its message is pushed to pool while the handle is live.
// Returning false from translate drops the event.
func Bind[M any](target EventTarget, kind string, pool *Messages[M], translate func(Event) (M, bool)) (*Handle, error) {
	h := &Handle{kind: kind}
	sub, err := target.Listen(kind, func(ev Event) {
		h.mu.RLock()
		defer h.mu.RUnlock()
		if !h.live {
			return
		}
		if msg, ok := translate(ev); ok {
			pool.Push(msg)
		}
	})
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.sub = sub
	h.live = true
	h.mu.Unlock()
	return h, nil
}

// funcListener is the default Listener: a kind and a translation function.
// It may be live on several elements at once, with one handle per element.
type funcListener[M any] struct {
	kind string
	fn   func(Event) M

	mu      sync.Mutex
	handles map[EventTarget]*Handle
}

// On creates a listener that translates kind events with fn.
//
// Listener identity is value identity: reuse the returned listener across
// renders to keep its subscriptions alive; a new listener for the same kind
// is re-attached. The same value may be used on several elements, but is
// attached at most once per element.
func On[M any](kind string, fn func(Event) M) Listener[M] {
	return &funcListener[M]{kind: kind, fn: fn}
}

func (l *funcListener[M]) Kind() string {
	return l.kind
}

func (l *funcListener[M]) Attach(target EventTarget, pool *Messages[M]) (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Targets of a non-comparable type cannot be tracked; the per-element
	// registry of the applier still rejects a second attach for them.
	tracked := target != nil && reflect.TypeOf(target).Comparable()
	if tracked && l.handles[target] != nil {
		return nil, errors.New("R101").WithDetailf("%s listener is already bound to this element", l.kind)
	}
	h, err := Bind(target, l.kind, pool, func(ev Event) (M, bool) {
		return l.fn(ev), true
	})
	if err != nil {
		return nil, err
	}
	if !tracked {
		return h, nil
	}
	h.mu.Lock()
	h.onDetach = func() {
		l.mu.Lock()
		if l.handles[target] == h {
			delete(l.handles, target)
		}
		l.mu.Unlock()
	}
	h.mu.Unlock()
	if l.handles == nil {
		l.handles = make(map[EventTarget]*Handle)
	}
	l.handles[target] = h
	return h, nil
}

// String implements fmt.Stringer.
func (l *funcListener[M]) String() string {
	return "Listener{kind: " + l.kind + "}"
}

// SameListener reports whether a and b are the same listener value.
// Listeners whose dynamic type is not comparable are never the same.
func SameListener[M any](a, b Listener[M]) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Common events

func OnClick[M any](fn func(Event) M) Listener[M]    { return On("click", fn) }
func OnDblClick[M any](fn func(Event) M) Listener[M] { return On("dblclick", fn) }
func OnInput[M any](fn func(Event) M) Listener[M]    { return On("input", fn) }
func OnChange[M any](fn func(Event) M) Listener[M]   { return On("change", fn) }
func OnSubmit[M any](fn func(Event) M) Listener[M]   { return On("submit", fn) }
func OnKeyDown[M any](fn func(Event) M) Listener[M]  { return On("keydown", fn) }
func OnFocus[M any](fn func(Event) M) Listener[M]    { return On("focus", fn) }
func OnBlur[M any](fn func(Event) M) Listener[M]     { return On("blur", fn) }
