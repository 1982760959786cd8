package dom

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

var (
	// ErrInvalidPath is returned when a change addresses a position the
	// mounted tree does not have.
	ErrInvalidPath = errors.New("R202")

	// ErrPoisoned is returned by Apply after a failed pass until Reset.
	ErrPoisoned = errors.New("R303")
)

// PassError reports the change that aborted a pass.
type PassError struct {
	Index  int    // Position of the failing change in the sequence
	Change string // String form of the failing change
	Err    error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("change %d (%s): %v", e.Index, e.Change, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// node mirrors one mounted backend element.
type node struct {
	el       Element
	text     bool
	handles  registry
	children []*node
}

// Mount applies change sequences to the children of a backend container.
//
// Mount keeps a mirror of every element it created together with the
// listener handles attached to it. A change's Path is resolved against the
// mirror; the empty path is the container.
type Mount[M any] struct {
	backend Backend
	pool    *vdom.Messages[M]
	logger  *slog.Logger

	mu       sync.Mutex
	root     *node // container; its children are managed by the mount
	live     int
	poisoned error
}

// NewMount creates a mount over container, which must start empty.
// Listeners in applied trees push their messages to pool.
func NewMount[M any](backend Backend, container Element, pool *vdom.Messages[M]) *Mount[M] {
	return &Mount[M]{
		backend: backend,
		pool:    pool,
		logger:  slog.Default().With("component", "dom"),
		root:    &node{el: container},
	}
}

// Pool returns the messages pool listeners are attached to.
func (m *Mount[M]) Pool() *vdom.Messages[M] {
	return m.pool
}

// LiveHandles returns the number of listener handles currently attached.
func (m *Mount[M]) LiveHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Poisoned returns the error that aborted the last pass, or nil.
func (m *Mount[M]) Poisoned() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poisoned
}

// Apply executes changes in order. The first failing change aborts the
// rest of the pass: Apply returns a *PassError and every later call fails
// with ErrPoisoned until Reset.
func (m *Mount[M]) Apply(changes []vdom.Change[M]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned != nil {
		return errors.New("R303").Wrap(m.poisoned)
	}
	for i, c := range changes {
		if err := m.apply(c); err != nil {
			perr := &PassError{Index: i, Change: c.String(), Err: err}
			m.poisoned = perr
			return perr
		}
	}
	return nil
}

// Reset detaches every live handle, removes every mounted element and
// clears the poisoned state. The mount is empty afterwards even when the
// backend reports errors, which are joined and returned.
func (m *Mount[M]) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.root.children) - 1; i >= 0; i-- {
		child := m.root.children[i]
		if err := m.detachTree(child); err != nil {
			errs = append(errs, err)
		}
		if err := m.backend.Remove(m.root.el, i); err != nil {
			errs = append(errs, err)
		}
		if err := m.backend.Destroy(child.el); err != nil {
			errs = append(errs, err)
		}
	}
	m.root.children = nil
	m.live = 0
	m.poisoned = nil
	return stderrors.Join(errs...)
}

func (m *Mount[M]) apply(c vdom.Change[M]) error {
	n, err := m.resolve(c.Path)
	if err != nil {
		return err
	}

	switch {
	case c.Attr != nil:
		if n.text {
			return errors.New("R202").WithDetailf("attribute change on text node at %s", c.Path)
		}
		if c.Attr.Op == vdom.OpRemove {
			return m.backend.RemoveAttribute(n.el, c.Attr.ID)
		}
		return m.backend.SetAttribute(n.el, c.Attr.ID, c.Attr.Value)

	case c.Class != nil:
		if n.text {
			return errors.New("R202").WithDetailf("class change on text node at %s", c.Path)
		}
		if c.Class.Op == vdom.OpRemove {
			return m.backend.RemoveClass(n.el, c.Class.ID)
		}
		return m.backend.AddClass(n.el, c.Class.ID)

	case c.Listener != nil:
		if n.text {
			return errors.New("R202").WithDetailf("listener change on text node at %s", c.Path)
		}
		return m.applyListener(n, c.Listener)

	case c.Child != nil:
		if n.text {
			return errors.New("R202").WithDetailf("child change on text node at %s", c.Path)
		}
		return m.applyChild(n, c.Child)
	}
	return errors.New("R202").WithDetailf("empty change at %s", c.Path)
}

// resolve walks path from the container through the mirror.
func (m *Mount[M]) resolve(path vdom.Path) (*node, error) {
	n := m.root
	for depth, idx := range path {
		if idx < 0 || idx >= len(n.children) {
			return nil, errors.New("R202").WithDetailf("%s: no child %d at depth %d", path, idx, depth)
		}
		n = n.children[idx]
	}
	return n, nil
}

func (m *Mount[M]) applyListener(n *node, p *vdom.Patch[string, vdom.Listener[M]]) error {
	switch p.Op {
	case vdom.OpAdd:
		return m.attach(n, p.Value)
	case vdom.OpReplace:
		if err := m.detach(n, p.ID); err != nil {
			return err
		}
		return m.attach(n, p.Value)
	default:
		return m.detach(n, p.ID)
	}
}

func (m *Mount[M]) attach(n *node, l vdom.Listener[M]) error {
	kind := l.Kind()
	if n.handles.has(kind) {
		return errors.New("R101").WithDetailf("%s listener is already live on this element", kind)
	}
	h, err := l.Attach(n.el, m.pool)
	if err != nil {
		return err
	}
	if err := n.handles.put(kind, h); err != nil {
		if derr := h.Detach(); derr != nil {
			m.logger.Warn("detach after rejected attach failed", "kind", kind, "error", derr)
		}
		return err
	}
	m.live++
	return nil
}

func (m *Mount[M]) detach(n *node, kind string) error {
	if !n.handles.has(kind) {
		return errors.New("R103").WithDetailf("no live %s listener on this element", kind)
	}
	m.live--
	return n.handles.detach(kind)
}

// detachTree releases every handle at or below n, children first.
func (m *Mount[M]) detachTree(n *node) error {
	var errs []error
	for _, child := range n.children {
		if err := m.detachTree(child); err != nil {
			errs = append(errs, err)
		}
	}
	m.live -= n.handles.len()
	if err := n.handles.detachAll(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

func (m *Mount[M]) applyChild(parent *node, p *vdom.Patch[int, *vdom.VNode[M]]) error {
	idx := p.ID
	switch p.Op {
	case vdom.OpAdd:
		if idx < 0 || idx > len(parent.children) {
			return errors.New("R202").WithDetailf("cannot insert child %d of %d", idx, len(parent.children))
		}
		if p.Value == nil {
			return nil
		}
		child, err := m.build(p.Value)
		if err != nil {
			return err
		}
		if err := m.backend.Insert(parent.el, idx, child.el); err != nil {
			m.discard(child)
			return err
		}
		parent.children = insertAt(parent.children, idx, child)
		return nil

	case vdom.OpReplace:
		if idx < 0 || idx >= len(parent.children) {
			return errors.New("R202").WithDetailf("cannot replace child %d of %d", idx, len(parent.children))
		}
		old := parent.children[idx]
		if p.Value == nil {
			return errors.New("R202").WithDetailf("replace child %d with nothing", idx)
		}
		if old.text && p.Value.IsText() {
			if ts, ok := m.backend.(TextSetter); ok {
				return ts.SetText(old.el, p.Value.Text)
			}
		}
		if err := m.detachTree(old); err != nil {
			return err
		}
		child, err := m.build(p.Value)
		if err != nil {
			return err
		}
		if err := m.backend.Replace(parent.el, idx, child.el); err != nil {
			m.discard(child)
			return err
		}
		parent.children[idx] = child
		return m.backend.Destroy(old.el)

	default:
		if idx < 0 || idx >= len(parent.children) {
			return errors.New("R202").WithDetailf("cannot remove child %d of %d", idx, len(parent.children))
		}
		old := parent.children[idx]
		if err := m.detachTree(old); err != nil {
			return err
		}
		if err := m.backend.Remove(parent.el, idx); err != nil {
			return err
		}
		parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
		return m.backend.Destroy(old.el)
	}
}

// build creates the backend subtree for v and attaches its listeners.
// On failure everything created so far is released.
func (m *Mount[M]) build(v *vdom.VNode[M]) (*node, error) {
	if v.IsText() {
		el, err := m.backend.CreateText(v.Text)
		if err != nil {
			return nil, err
		}
		return &node{el: el, text: true}, nil
	}

	el, err := m.backend.CreateElement(v.Tag)
	if err != nil {
		return nil, err
	}
	n := &node{el: el}

	if err := m.populate(n, v); err != nil {
		m.discard(n)
		return nil, err
	}
	return n, nil
}

func (m *Mount[M]) populate(n *node, v *vdom.VNode[M]) error {
	for _, k := range v.Attrs.Keys() {
		if err := m.backend.SetAttribute(n.el, k, v.Attrs[k]); err != nil {
			return err
		}
	}
	for _, c := range v.Classes.Names() {
		if err := m.backend.AddClass(n.el, c); err != nil {
			return err
		}
	}
	for i, cv := range v.Children {
		child, err := m.build(cv)
		if err != nil {
			return err
		}
		if err := m.backend.Insert(n.el, i, child.el); err != nil {
			m.discard(child)
			return err
		}
		n.children = append(n.children, child)
	}
	for _, l := range v.Listeners {
		if err := m.attach(n, l); err != nil {
			return err
		}
	}
	return nil
}

// discard releases a subtree that never made it into the mirror. The
// pass is already failing, so release errors are only logged.
func (m *Mount[M]) discard(n *node) {
	if err := m.detachTree(n); err != nil {
		m.logger.Warn("discard: detach failed", "error", err)
	}
	if err := m.backend.Destroy(n.el); err != nil {
		m.logger.Warn("discard: destroy failed", "error", err)
	}
}

func insertAt(s []*node, i int, n *node) []*node {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = n
	return s
}
