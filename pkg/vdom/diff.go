package vdom

import (
	"sort"

	"github.com/vango-dev/vreconcile/internal/errors"
)

// ErrMountMismatch is returned by Diff when the two trees are rooted at
// different backend elements.
var ErrMountMismatch = errors.New("R201")

// Tree is a rendered tree bound to the backend element it is mounted on.
// A Tree with a nil Root describes an empty mount.
type Tree[M any] struct {
	Mount string
	Root  *VNode[M]
}

// NewTree creates a Tree for the given mount.
func NewTree[M any](mount string, root *VNode[M]) *Tree[M] {
	return &Tree[M]{Mount: mount, Root: root}
}

func (t *Tree[M]) root() *VNode[M] {
	if t == nil {
		return nil
	}
	return t.Root
}

// Diff compares two trees and returns the ordered changes needed to
// transform prev into next. Either tree may be nil: a nil prev is the first
// render and a nil next removes everything.
//
// Both trees are sealed and otherwise left untouched. For each element the
// sequence holds attribute, class and listener changes (sorted by key)
// before child changes. Children are matched by index: shared indexes are
// diffed in ascending order, then trailing children are added in ascending
// order or removed in descending order so every index stays valid while
// the sequence is applied front to back.
func Diff[M any](prev, next *Tree[M]) ([]Change[M], error) {
	if prev != nil && next != nil && prev.Mount != next.Mount {
		return nil, errors.New("R201").WithDetailf("%q vs %q", prev.Mount, next.Mount)
	}

	prevRoot, nextRoot := prev.root(), next.root()
	prevRoot.Seal()
	nextRoot.Seal()

	var changes []Change[M]
	diffChild(nil, 0, prevRoot, nextRoot, &changes)
	return changes, nil
}

// diffChild compares the index-th children of the element at parent.
func diffChild[M any](parent Path, index int, prev, next *VNode[M], changes *[]Change[M]) {
	switch {
	case prev == nil && next == nil:
		return

	case prev == nil:
		*changes = append(*changes, Change[M]{Path: parent, Child: add(index, next)})

	case next == nil:
		*changes = append(*changes, Change[M]{Path: parent, Child: remove[int, *VNode[M]](index)})

	case prev.Kind != next.Kind:
		*changes = append(*changes, Change[M]{Path: parent, Child: replace(index, next)})

	case prev.Kind == KindText:
		if prev.Text != next.Text {
			*changes = append(*changes, Change[M]{Path: parent, Child: replace(index, next)})
		}

	case prev.Tag != next.Tag:
		// Different tag - replace entire subtree
		*changes = append(*changes, Change[M]{Path: parent, Child: replace(index, next)})

	default:
		self := parent.Child(index)
		diffAttrs(self, prev.Attrs, next.Attrs, changes)
		diffClasses(self, prev.Classes, next.Classes, changes)
		diffListeners(self, prev.Listeners, next.Listeners, changes)
		diffChildren(self, prev.Children, next.Children, changes)
	}
}

// diffChildren matches children by position.
func diffChildren[M any](self Path, prev, next []*VNode[M], changes *[]Change[M]) {
	shared := min(len(prev), len(next))

	for i := 0; i < shared; i++ {
		diffChild(self, i, prev[i], next[i], changes)
	}
	for i := shared; i < len(next); i++ {
		*changes = append(*changes, Change[M]{Path: self, Child: add(i, next[i])})
	}
	for i := len(prev) - 1; i >= shared; i-- {
		*changes = append(*changes, Change[M]{Path: self, Child: remove[int, *VNode[M]](i)})
	}
}

// diffAttrs emits Add for keys only in next, Replace for keys whose value
// changed and Remove for keys only in prev.
func diffAttrs[M any](self Path, prev, next Attributes, changes *[]Change[M]) {
	for _, key := range unionKeys(prev, next) {
		prevVal, inPrev := prev[key]
		nextVal, inNext := next[key]

		switch {
		case !inPrev:
			*changes = append(*changes, Change[M]{Path: self, Attr: add(key, nextVal)})
		case !inNext:
			*changes = append(*changes, Change[M]{Path: self, Attr: remove[string, string](key)})
		case prevVal != nextVal:
			*changes = append(*changes, Change[M]{Path: self, Attr: replace(key, nextVal)})
		}
	}
}

// diffClasses compares class sets by presence.
func diffClasses[M any](self Path, prev, next ClassSet, changes *[]Change[M]) {
	for _, name := range unionKeys(prev, next) {
		inPrev, inNext := prev.Has(name), next.Has(name)

		switch {
		case inNext && !inPrev:
			*changes = append(*changes, Change[M]{Path: self, Class: add(name, struct{}{})})
		case inPrev && !inNext:
			*changes = append(*changes, Change[M]{Path: self, Class: remove[string, struct{}](name)})
		}
	}
}

// diffListeners compares listeners by event kind. A kind whose listener
// value changed is replaced (detach old, attach new).
func diffListeners[M any](self Path, prev, next []Listener[M], changes *[]Change[M]) {
	prevByKind := listenersByKind(prev)
	nextByKind := listenersByKind(next)

	for _, kind := range unionKeys(prevByKind, nextByKind) {
		prevL, inPrev := prevByKind[kind]
		nextL, inNext := nextByKind[kind]

		switch {
		case !inPrev:
			*changes = append(*changes, Change[M]{Path: self, Listener: add(kind, nextL)})
		case !inNext:
			*changes = append(*changes, Change[M]{Path: self, Listener: remove[string, Listener[M]](kind)})
		case !SameListener(prevL, nextL):
			*changes = append(*changes, Change[M]{Path: self, Listener: replace(kind, nextL)})
		}
	}
}

func listenersByKind[M any](ls []Listener[M]) map[string]Listener[M] {
	out := make(map[string]Listener[M], len(ls))
	for _, l := range ls {
		out[l.Kind()] = l
	}
	return out
}

// unionKeys returns the sorted union of the keys of a and b.
func unionKeys[V any](a, b map[string]V) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
