package vdom

import (
	"github.com/vango-dev/vreconcile/internal/errors"
)

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement VKind = iota // <div>, <button>, etc.
	KindText                 // Plain text node
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	default:
		return "Unknown"
	}
}

// VNode is one position in the virtual tree. M is the application message
// type produced by the node's listeners.
//
// A VNode owns its children exclusively. Nodes are built with Tag and Text
// and mutated only until the tree is handed to Diff, which seals it.
type VNode[M any] struct {
	Kind      VKind         // Node type
	Tag       string        // Element tag name (e.g., "div")
	Attrs     Attributes    // Element attributes
	Classes   ClassSet      // Element classes
	Children  []*VNode[M]   // Child nodes, matched by position
	Listeners []Listener[M] // At most one listener per event kind
	Text      string        // For KindText

	parent *VNode[M]
	sealed bool
}

// IsElement returns true for element nodes.
func (v *VNode[M]) IsElement() bool {
	return v != nil && v.Kind == KindElement
}

// IsText returns true for text nodes.
func (v *VNode[M]) IsText() bool {
	return v != nil && v.Kind == KindText
}

// Sealed reports whether the node belongs to a tree that was submitted for
// diffing.
func (v *VNode[M]) Sealed() bool {
	return v != nil && v.sealed
}

// Seal marks the subtree read-only.
func (v *VNode[M]) Seal() {
	if v == nil || v.sealed {
		return
	}
	v.sealed = true
	for _, child := range v.Children {
		child.Seal()
	}
}

// SetAttr sets an attribute, replacing any earlier value for the key.
func (v *VNode[M]) SetAttr(key, value string) *VNode[M] {
	v.mustBuildElement("SetAttr")
	if v.Attrs == nil {
		v.Attrs = make(Attributes)
	}
	v.Attrs[key] = value
	return v
}

// RemoveAttr removes an attribute.
func (v *VNode[M]) RemoveAttr(key string) *VNode[M] {
	v.mustBuildElement("RemoveAttr")
	delete(v.Attrs, key)
	return v
}

// AddClass adds classes to the element's class set.
func (v *VNode[M]) AddClass(names ...string) *VNode[M] {
	v.mustBuildElement("AddClass")
	if v.Classes == nil {
		v.Classes = make(ClassSet)
	}
	v.Classes.Add(names...)
	return v
}

// ToggleClass adds the class if absent and removes it if present.
func (v *VNode[M]) ToggleClass(name string) *VNode[M] {
	v.mustBuildElement("ToggleClass")
	if v.Classes == nil {
		v.Classes = make(ClassSet)
	}
	v.Classes.Toggle(name)
	return v
}

// AppendChild appends children in order. Nil children are skipped.
// A child that already has a parent panics with R106.
func (v *VNode[M]) AppendChild(children ...*VNode[M]) *VNode[M] {
	v.mustBuildElement("AppendChild")
	for _, child := range children {
		if child == nil {
			continue
		}
		if child.parent != nil || child.sealed || child == v || v.hasAncestor(child) {
			panic(errors.New("R106").WithDetailf("<%s> cannot adopt %s", v.Tag, describe(child)))
		}
		child.parent = v
		v.Children = append(v.Children, child)
	}
	return v
}

// AddListener adds a listener. A listener for an event kind already present
// on the element replaces the earlier one.
func (v *VNode[M]) AddListener(l Listener[M]) *VNode[M] {
	v.mustBuildElement("AddListener")
	if l == nil {
		return v
	}
	kind := l.Kind()
	for i, existing := range v.Listeners {
		if existing.Kind() == kind {
			v.Listeners[i] = l
			return v
		}
	}
	v.Listeners = append(v.Listeners, l)
	return v
}

// Listener returns the listener registered for kind, or nil.
func (v *VNode[M]) Listener(kind string) Listener[M] {
	if v == nil {
		return nil
	}
	for _, l := range v.Listeners {
		if l.Kind() == kind {
			return l
		}
	}
	return nil
}

func (v *VNode[M]) hasAncestor(n *VNode[M]) bool {
	for p := v.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

func (v *VNode[M]) mustBuildElement(op string) {
	if v.sealed {
		panic(errors.New("R102").WithDetailf("%s on %s", op, describe(v)))
	}
	if v.Kind != KindElement {
		panic(errors.New("R105").WithDetailf("%s on %s", op, describe(v)))
	}
}

// Equal reports whether two nodes are structurally equal. Listeners are
// compared by kind and identity.
func Equal[M any](a, b *VNode[M]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindText {
		return a.Text == b.Text
	}
	if a.Tag != b.Tag || !a.Attrs.Equal(b.Attrs) || !a.Classes.Equal(b.Classes) {
		return false
	}
	if len(a.Listeners) != len(b.Listeners) {
		return false
	}
	for _, la := range a.Listeners {
		if !SameListener(la, b.Listener(la.Kind())) {
			return false
		}
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in the subtree.
func Count[M any](v *VNode[M]) int {
	if v == nil {
		return 0
	}
	n := 1
	for _, child := range v.Children {
		n += Count(child)
	}
	return n
}

// CountListeners returns the number of listeners declared in the subtree.
func CountListeners[M any](v *VNode[M]) int {
	if v == nil {
		return 0
	}
	n := len(v.Listeners)
	for _, child := range v.Children {
		n += CountListeners(child)
	}
	return n
}

// describe returns a short label for diagnostics and change strings.
func describe[M any](v *VNode[M]) string {
	switch {
	case v == nil:
		return "<nil>"
	case v.Kind == KindText:
		return quote(v.Text)
	default:
		return "<" + v.Tag + ">"
	}
}
