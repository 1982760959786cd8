package vdom

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is the kind of patch operation.
type Op uint8

const (
	OpAdd     Op = 0x01 // Insert a new entry
	OpReplace Op = 0x02 // Overwrite an existing entry
	OpRemove  Op = 0x03 // Delete an existing entry
)

// String returns the string representation of the Op.
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpReplace:
		return "replace"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Patch is one Add/Replace/Remove over a position identifier ID and a
// payload T. Remove carries the zero payload.
type Patch[ID comparable, T any] struct {
	Op    Op
	ID    ID
	Value T
}

func add[ID comparable, T any](id ID, v T) *Patch[ID, T] {
	return &Patch[ID, T]{Op: OpAdd, ID: id, Value: v}
}

func replace[ID comparable, T any](id ID, v T) *Patch[ID, T] {
	return &Patch[ID, T]{Op: OpReplace, ID: id, Value: v}
}

func remove[ID comparable, T any](id ID) *Patch[ID, T] {
	return &Patch[ID, T]{Op: OpRemove, ID: id}
}

// Path addresses an element by child indexes from the mount container.
// The empty path is the container itself; the tree root is Path{0}.
type Path []int

// Child returns a new path extended with index i.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// String returns the path as "[0 2 1]".
func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, idx := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	b.WriteByte(']')
	return b.String()
}

// Equal reports whether two paths address the same position.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Target is the part of an element a Change mutates.
type Target uint8

const (
	TargetAttr Target = iota + 1
	TargetClass
	TargetListener
	TargetChild
)

// String returns the string representation of the Target.
func (t Target) String() string {
	switch t {
	case TargetAttr:
		return "attr"
	case TargetClass:
		return "class"
	case TargetListener:
		return "listener"
	case TargetChild:
		return "child"
	default:
		return "unknown"
	}
}

// Change is one entry of a patch sequence. Path is the element that owns
// the change; exactly one of the patch fields is set.
//
// For Child patches the ID is the index among Path's children.
type Change[M any] struct {
	Path     Path
	Attr     *Patch[string, string]
	Class    *Patch[string, struct{}]
	Listener *Patch[string, Listener[M]]
	Child    *Patch[int, *VNode[M]]
}

// Target returns which patch field is set.
func (c Change[M]) Target() Target {
	switch {
	case c.Attr != nil:
		return TargetAttr
	case c.Class != nil:
		return TargetClass
	case c.Listener != nil:
		return TargetListener
	case c.Child != nil:
		return TargetChild
	default:
		return 0
	}
}

// Op returns the operation of the set patch.
func (c Change[M]) Op() Op {
	switch {
	case c.Attr != nil:
		return c.Attr.Op
	case c.Class != nil:
		return c.Class.Op
	case c.Listener != nil:
		return c.Listener.Op
	case c.Child != nil:
		return c.Child.Op
	default:
		return 0
	}
}

// String renders a stable one-line form, e.g. `[0] attr add id="x"`.
func (c Change[M]) String() string {
	head := c.Path.String() + " " + c.Target().String() + " " + c.Op().String()
	switch {
	case c.Attr != nil:
		if c.Attr.Op == OpRemove {
			return head + " " + c.Attr.ID
		}
		return head + " " + c.Attr.ID + "=" + strconv.Quote(c.Attr.Value)
	case c.Class != nil:
		return head + " " + c.Class.ID
	case c.Listener != nil:
		return head + " " + c.Listener.ID
	case c.Child != nil:
		if c.Child.Op == OpRemove {
			return fmt.Sprintf("%s %d", head, c.Child.ID)
		}
		return fmt.Sprintf("%s %d %s", head, c.Child.ID, describe(c.Child.Value))
	default:
		return head
	}
}

// TallyKey groups changes by target and op.
type TallyKey struct {
	Target Target
	Op     Op
}

// Tally counts changes per target and op.
func Tally[M any](changes []Change[M]) map[TallyKey]int {
	out := make(map[TallyKey]int)
	for _, c := range changes {
		out[TallyKey{Target: c.Target(), Op: c.Op()}]++
	}
	return out
}

// Strings renders every change with String.
func Strings[M any](changes []Change[M]) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.String()
	}
	return out
}
