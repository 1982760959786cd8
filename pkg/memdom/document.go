package memdom

import (
	"sort"
	"sync"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// ErrElementGone is returned for any operation on a destroyed element.
var ErrElementGone = errors.New("R301")

// RootTag is the tag of a document's container element.
const RootTag = "#root"

// Option configures a Document.
type Option func(*Document)

// WithJournal records every mutating operation; see Journal.
func WithJournal() Option {
	return func(d *Document) {
		d.journal = []string{}
	}
}

// Document is an in-memory element tree implementing dom.Backend.
// It is safe for concurrent use; event callbacks run without the
// document lock held.
type Document struct {
	mu      sync.Mutex
	nextID  int
	nextSub int
	root    *Element
	live    int
	subs    int
	journal []string
}

var (
	_ dom.Backend    = (*Document)(nil)
	_ dom.TextSetter = (*Document)(nil)
)

// NewDocument creates an empty document with a container element.
func NewDocument(opts ...Option) *Document {
	d := &Document{}
	for _, opt := range opts {
		opt(d)
	}
	d.root = d.newElement(RootTag, false, "")
	d.live = 0
	return d
}

// Root returns the container element.
func (d *Document) Root() *Element {
	return d.root
}

// LiveElements returns the number of created, not yet destroyed elements
// excluding the container.
func (d *Document) LiveElements() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// ListenerCount returns the number of live event subscriptions.
func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subs
}

// Journal returns the recorded operations (nil unless WithJournal).
func (d *Document) Journal() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.journal == nil {
		return nil
	}
	return append([]string(nil), d.journal...)
}

// ClearJournal drops the recorded operations.
func (d *Document) ClearJournal() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.journal != nil {
		d.journal = d.journal[:0]
	}
}

func (d *Document) record(op string, el *Element, extra string) {
	if d.journal == nil {
		return
	}
	entry := op + " " + el.label()
	if extra != "" {
		entry += " " + extra
	}
	d.journal = append(d.journal, entry)
}

func (d *Document) newElement(tag string, text bool, content string) *Element {
	d.nextID++
	d.live++
	return &Element{
		doc:    d,
		id:     d.nextID,
		tag:    tag,
		isText: text,
		text:   content,
	}
}

// element converts a dom.Element into one of this document's live
// elements.
func (d *Document) element(el dom.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil || e.doc != d {
		return nil, errors.New("R302").WithDetailf("element %T does not belong to this document", el)
	}
	if e.destroyed {
		return nil, errors.New("R301").WithDetailf("%s was destroyed", e.label())
	}
	return e, nil
}

func (d *Document) container(el dom.Element) (*Element, error) {
	e, err := d.element(el)
	if err != nil {
		return nil, err
	}
	if e.isText {
		return nil, errors.New("R302").WithDetailf("%s cannot have children", e.label())
	}
	return e, nil
}

// CreateElement implements dom.Backend.
func (d *Document) CreateElement(tag string) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tag == "" {
		return nil, errors.New("R302").WithDetail("empty tag name")
	}
	e := d.newElement(tag, false, "")
	d.record("create", e, "")
	return e, nil
}

// CreateText implements dom.Backend.
func (d *Document) CreateText(text string) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.newElement("", true, text)
	d.record("create", e, "")
	return e, nil
}

// Insert implements dom.Backend.
func (d *Document) Insert(parent dom.Element, index int, child dom.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.container(parent)
	if err != nil {
		return err
	}
	c, err := d.element(child)
	if err != nil {
		return err
	}
	if c.parent != nil {
		return errors.New("R302").WithDetailf("%s is already inserted", c.label())
	}
	if index < 0 || index > len(p.children) {
		return errors.New("R302").WithDetailf("insert index %d out of range [0, %d]", index, len(p.children))
	}
	p.children = append(p.children, nil)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = c
	c.parent = p
	d.record("insert", c, "into "+p.label())
	return nil
}

// Replace implements dom.Backend.
func (d *Document) Replace(parent dom.Element, index int, child dom.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.container(parent)
	if err != nil {
		return err
	}
	c, err := d.element(child)
	if err != nil {
		return err
	}
	if c.parent != nil {
		return errors.New("R302").WithDetailf("%s is already inserted", c.label())
	}
	if index < 0 || index >= len(p.children) {
		return errors.New("R302").WithDetailf("replace index %d out of range [0, %d)", index, len(p.children))
	}
	old := p.children[index]
	old.parent = nil
	p.children[index] = c
	c.parent = p
	d.record("replace", old, "with "+c.label())
	return nil
}

// Remove implements dom.Backend.
func (d *Document) Remove(parent dom.Element, index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.container(parent)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.children) {
		return errors.New("R302").WithDetailf("remove index %d out of range [0, %d)", index, len(p.children))
	}
	old := p.children[index]
	old.parent = nil
	p.children = append(p.children[:index], p.children[index+1:]...)
	d.record("remove", old, "from "+p.label())
	return nil
}

// Destroy implements dom.Backend. The element is unlinked from its parent
// if it still has one; it and every descendant become unusable and their
// subscriptions are dropped.
func (d *Document) Destroy(el dom.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.element(el)
	if err != nil {
		return err
	}
	if e == d.root {
		return errors.New("R302").WithDetail("the container cannot be destroyed")
	}
	if p := e.parent; p != nil {
		for i, c := range p.children {
			if c == e {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
		e.parent = nil
	}
	d.record("destroy", e, "")
	d.destroy(e)
	return nil
}

func (d *Document) destroy(e *Element) {
	for _, c := range e.children {
		c.parent = nil
		d.destroy(c)
	}
	e.children = nil
	d.subs -= len(e.subs)
	e.subs = nil
	e.destroyed = true
	d.live--
}

// SetAttribute implements dom.Backend.
func (d *Document) SetAttribute(el dom.Element, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.container(el)
	if err != nil {
		return err
	}
	if e.attrs == nil {
		e.attrs = make(map[string]string)
	}
	e.attrs[key] = value
	d.record("set", e, key)
	return nil
}

// RemoveAttribute implements dom.Backend.
func (d *Document) RemoveAttribute(el dom.Element, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.container(el)
	if err != nil {
		return err
	}
	delete(e.attrs, key)
	d.record("unset", e, key)
	return nil
}

// AddClass implements dom.Backend.
func (d *Document) AddClass(el dom.Element, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.container(el)
	if err != nil {
		return err
	}
	if e.classes == nil {
		e.classes = make(map[string]struct{})
	}
	e.classes[name] = struct{}{}
	d.record("addclass", e, name)
	return nil
}

// RemoveClass implements dom.Backend.
func (d *Document) RemoveClass(el dom.Element, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.container(el)
	if err != nil {
		return err
	}
	delete(e.classes, name)
	d.record("rmclass", e, name)
	return nil
}

// SetText implements dom.TextSetter.
func (d *Document) SetText(el dom.Element, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.element(el)
	if err != nil {
		return err
	}
	if !e.isText {
		return errors.New("R302").WithDetailf("%s is not a text node", e.label())
	}
	e.text = text
	d.record("settext", e, "")
	return nil
}

// Find walks child indexes from the container.
func (d *Document) Find(path ...int) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.root
	for depth, idx := range path {
		if idx < 0 || idx >= len(e.children) {
			return nil, errors.New("R202").WithDetailf("%v: no child %d at depth %d", path, idx, depth)
		}
		e = e.children[idx]
	}
	return e, nil
}

// Dispatch fires ev on el, invoking every subscription for ev.Kind in
// registration order. It returns the number of callbacks invoked.
func (d *Document) Dispatch(el *Element, ev vdom.Event) (int, error) {
	d.mu.Lock()
	if _, err := d.element(el); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	var fns []*subscription
	for _, s := range el.subs {
		if s.kind == ev.Kind {
			fns = append(fns, s)
		}
	}
	d.mu.Unlock()

	sort.Slice(fns, func(i, j int) bool { return fns[i].id < fns[j].id })
	for _, s := range fns {
		s.fn(ev)
	}
	return len(fns), nil
}

// DispatchPath fires ev on the element at path.
func (d *Document) DispatchPath(path vdom.Path, ev vdom.Event) (int, error) {
	el, err := d.Find(path...)
	if err != nil {
		return 0, err
	}
	return d.Dispatch(el, ev)
}
