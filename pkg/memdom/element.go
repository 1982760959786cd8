package memdom

import (
	"sort"
	"strconv"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Element is a node of a Document: an element or a text node.
type Element struct {
	doc *Document
	id  int

	tag    string
	isText bool
	text   string

	attrs    map[string]string
	classes  map[string]struct{}
	children []*Element
	parent   *Element

	subs      map[int]*subscription
	destroyed bool
}

type subscription struct {
	el   *Element
	id   int
	kind string
	fn   func(vdom.Event)
}

// ID returns the document-unique element id.
func (e *Element) ID() int { return e.id }

// Tag returns the tag name ("" for text nodes).
func (e *Element) Tag() string { return e.tag }

// IsText reports whether e is a text node.
func (e *Element) IsText() bool { return e.isText }

// Text returns the content of a text node.
func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.text
}

// Attr returns an attribute value.
func (e *Element) Attr(key string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, ok := e.attrs[key]
	return v, ok
}

// HasClass reports whether the class token is present.
func (e *Element) HasClass(name string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	_, ok := e.classes[name]
	return ok
}

// Children returns a copy of the child list.
func (e *Element) Children() []*Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return append([]*Element(nil), e.children...)
}

// Destroyed reports whether the element has been destroyed.
func (e *Element) Destroyed() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.destroyed
}

// Listening returns the sorted event kinds with a live subscription.
func (e *Element) Listening() []string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.listening()
}

func (e *Element) listening() []string {
	seen := make(map[string]struct{}, len(e.subs))
	for _, s := range e.subs {
		seen[s.kind] = struct{}{}
	}
	kinds := make([]string, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Listen implements vdom.EventTarget. It fails with ErrElementGone once
// the element has been destroyed.
func (e *Element) Listen(kind string, fn func(vdom.Event)) (vdom.Subscription, error) {
	d := e.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	if e.destroyed {
		return nil, errors.New("R301").WithDetailf("listen %s on destroyed %s", kind, e.label())
	}
	if e.isText {
		return nil, errors.New("R302").WithDetailf("text nodes do not emit %s events", kind)
	}
	d.nextSub++
	s := &subscription{el: e, id: d.nextSub, kind: kind, fn: fn}
	if e.subs == nil {
		e.subs = make(map[int]*subscription)
	}
	e.subs[s.id] = s
	d.subs++
	d.record("listen", e, kind)
	return s, nil
}

// Cancel implements vdom.Subscription. Cancelling after the element was
// destroyed is a no-op since destruction already dropped the subscription.
func (s *subscription) Cancel() error {
	d := s.el.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := s.el.subs[s.id]; !ok {
		if s.el.destroyed {
			return nil
		}
		return errors.New("R302").WithDetailf("%s subscription cancelled twice", s.kind)
	}
	delete(s.el.subs, s.id)
	d.subs--
	d.record("unlisten", s.el, s.kind)
	return nil
}

func (e *Element) label() string {
	if e.isText {
		return "#text" + strconv.Itoa(e.id)
	}
	return e.tag + "#" + strconv.Itoa(e.id)
}
