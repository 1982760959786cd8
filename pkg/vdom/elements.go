package vdom

import (
	"fmt"

	"github.com/vango-dev/vreconcile/internal/errors"
)

// Tag creates an element node with the given tag name.
// Arguments can be: nil, Attr, []Attr, ClassList, Listener[M], *VNode[M],
// []*VNode[M], or string (a text child). Any other argument panics.
func Tag[M any](name string, args ...any) *VNode[M] {
	node := &VNode[M]{
		Kind:    KindElement,
		Tag:     name,
		Attrs:   make(Attributes),
		Classes: make(ClassSet),
	}

	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			// Ignore nil (allows conditional arguments)
			continue

		case Attr:
			if v.Key != "" {
				node.Attrs[v.Key] = v.Value
			}

		case []Attr:
			for _, a := range v {
				if a.Key != "" {
					node.Attrs[a.Key] = a.Value
				}
			}

		case ClassList:
			node.Classes.Add(v...)

		case Listener[M]:
			node.AddListener(v)

		case *VNode[M]:
			node.AppendChild(v)

		case []*VNode[M]:
			node.AppendChild(v...)

		case string:
			node.AppendChild(Text[M](v))

		default:
			panic(errors.New("R105").WithDetailf("unsupported argument %T for <%s>", arg, name))
		}
	}

	return node
}

// Text creates a text node.
func Text[M any](content string) *VNode[M] {
	return &VNode[M]{
		Kind: KindText,
		Text: content,
	}
}

// Textf creates a formatted text node.
func Textf[M any](format string, args ...any) *VNode[M] {
	return Text[M](fmt.Sprintf(format, args...))
}

// Common elements

func Div[M any](args ...any) *VNode[M]    { return Tag[M]("div", args...) }
func Span[M any](args ...any) *VNode[M]   { return Tag[M]("span", args...) }
func P[M any](args ...any) *VNode[M]      { return Tag[M]("p", args...) }
func H1[M any](args ...any) *VNode[M]     { return Tag[M]("h1", args...) }
func Ul[M any](args ...any) *VNode[M]     { return Tag[M]("ul", args...) }
func Li[M any](args ...any) *VNode[M]     { return Tag[M]("li", args...) }
func Button[M any](args ...any) *VNode[M] { return Tag[M]("button", args...) }
func Input[M any](args ...any) *VNode[M]  { return Tag[M]("input", args...) }
func Form[M any](args ...any) *VNode[M]   { return Tag[M]("form", args...) }
func Label[M any](args ...any) *VNode[M]  { return Tag[M]("label", args...) }
