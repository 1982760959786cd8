package dom

import "github.com/vango-dev/vreconcile/pkg/vdom"

// Element is an opaque backend node. Elements accept native event
// subscriptions; Listen must fail once the element has been destroyed.
type Element interface {
	vdom.EventTarget
}

// Backend is the narrow rendering-surface contract the applier drives.
//
// Index arguments address a parent's children in backend order. Replace
// swaps the child at index for a new one and detaches (but does not destroy)
// the old child. Destroy releases an element and its descendants; any later
// operation on them must return an error.
type Backend interface {
	CreateElement(tag string) (Element, error)
	CreateText(text string) (Element, error)

	Insert(parent Element, index int, child Element) error
	Replace(parent Element, index int, child Element) error
	Remove(parent Element, index int) error
	Destroy(el Element) error

	SetAttribute(el Element, key, value string) error
	RemoveAttribute(el Element, key string) error
	AddClass(el Element, name string) error
	RemoveClass(el Element, name string) error
}

// TextSetter is implemented by backends that can rewrite a text node in
// place. Without it a text change recreates the node.
type TextSetter interface {
	SetText(el Element, text string) error
}
