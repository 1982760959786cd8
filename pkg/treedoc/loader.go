package treedoc

import (
	"sort"
	"sync"

	"github.com/vango-dev/vreconcile/pkg/vdom"
)

type listenerKey struct {
	mount  string
	path   string
	kind   string
	source string
}

// Loader turns documents into virtual trees. Listeners are cached by
// position, kind and expression, so loading an unchanged listener again
// yields the same value and the applier keeps its subscription.
type Loader struct {
	mu        sync.Mutex
	listeners map[listenerKey]*Listener
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{listeners: make(map[listenerKey]*Listener)}
}

// Tree builds the virtual tree of doc.
func (l *Loader) Tree(doc *Document) (*vdom.Tree[Message], error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if doc.Root == nil {
		return vdom.NewTree[Message](doc.Mount, nil), nil
	}
	root, err := l.build(doc.Mount, vdom.Path{0}, doc.Root)
	if err != nil {
		return nil, err
	}
	return vdom.NewTree(doc.Mount, root), nil
}

// Listeners returns the number of cached listeners.
func (l *Loader) Listeners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}

func (l *Loader) build(mount string, path vdom.Path, n *Node) (*vdom.VNode[Message], error) {
	if n.IsText() {
		return vdom.Text[Message](*n.Text), nil
	}

	v := vdom.Tag[Message](n.Tag)
	for k, val := range n.Attrs {
		v.SetAttr(k, val)
	}
	v.AddClass(n.Classes...)

	kinds := make([]string, 0, len(n.On))
	for kind := range n.On {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		lis, err := l.listener(listenerKey{mount: mount, path: path.String(), kind: kind, source: n.On[kind]})
		if err != nil {
			return nil, err
		}
		v.AddListener(lis)
	}

	for i, c := range n.Children {
		child, err := l.build(mount, path.Child(i), c)
		if err != nil {
			return nil, err
		}
		v.AppendChild(child)
	}
	return v, nil
}

func (l *Loader) listener(key listenerKey) (*Listener, error) {
	if lis, ok := l.listeners[key]; ok {
		return lis, nil
	}
	lis, err := Compile(key.kind, key.source)
	if err != nil {
		return nil, err
	}
	l.listeners[key] = lis
	return lis, nil
}

// FromVNode converts a virtual tree back to document form. Listener
// expressions are recovered from document listeners only.
func FromVNode(v *vdom.VNode[Message]) *Node {
	if v == nil {
		return nil
	}
	if v.IsText() {
		return TextNode(v.Text)
	}
	n := &Node{Tag: v.Tag, Classes: v.Classes.Names()}
	if len(n.Classes) == 0 {
		n.Classes = nil
	}
	if len(v.Attrs) > 0 {
		n.Attrs = make(map[string]string, len(v.Attrs))
		for k, val := range v.Attrs {
			n.Attrs[k] = val
		}
	}
	if len(v.Listeners) > 0 {
		n.On = make(map[string]string, len(v.Listeners))
		for _, lis := range v.Listeners {
			n.On[lis.Kind()] = SourceOf(lis)
		}
	}
	for _, c := range v.Children {
		n.Children = append(n.Children, FromVNode(c))
	}
	return n
}
