package protocol

import (
	"sort"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Replay applies a change sequence to a wire tree rooted at root and
// returns the new root. root is modified in place. Changes must have been
// computed against the tree root describes; a change that does not fit
// fails with R202.
func Replay(root *WireNode, changes []WireChange) (*WireNode, error) {
	for i, c := range changes {
		var err error
		if root, err = replayOne(root, c); err != nil {
			return root, errors.FromError(err, "R202").WithDetailf("change %d (%s)", i, c)
		}
	}
	return root, nil
}

func replayOne(root *WireNode, c WireChange) (*WireNode, error) {
	if c.Target == vdom.TargetChild && len(c.Path) == 0 {
		if c.Index != 0 {
			return root, errors.New("R202")
		}
		switch c.Op {
		case vdom.OpRemove:
			if root == nil {
				return root, errors.New("R202")
			}
			return nil, nil
		case vdom.OpAdd:
			if root != nil {
				return root, errors.New("R202")
			}
		}
		return c.Node.Clone(), nil
	}

	if root == nil || len(c.Path) == 0 || c.Path[0] != 0 {
		return root, errors.New("R202")
	}
	n := root
	for _, i := range c.Path[1:] {
		if i < 0 || i >= len(n.Children) {
			return root, errors.New("R202")
		}
		n = n.Children[i]
	}
	if n.Kind != vdom.KindElement {
		return root, errors.New("R202")
	}

	switch c.Target {
	case vdom.TargetAttr:
		if c.Op == vdom.OpRemove {
			delete(n.Attrs, c.Key)
			if len(n.Attrs) == 0 {
				n.Attrs = nil
			}
			break
		}
		if n.Attrs == nil {
			n.Attrs = make(map[string]string)
		}
		n.Attrs[c.Key] = c.Value
	case vdom.TargetClass:
		n.Classes = setStrings(n.Classes, c.Key, c.Op != vdom.OpRemove)
	case vdom.TargetListener:
		n.Listeners = setStrings(n.Listeners, c.Key, c.Op != vdom.OpRemove)
	case vdom.TargetChild:
		switch c.Op {
		case vdom.OpAdd:
			if c.Index < 0 || c.Index > len(n.Children) {
				return root, errors.New("R202")
			}
			n.Children = append(n.Children, nil)
			copy(n.Children[c.Index+1:], n.Children[c.Index:])
			n.Children[c.Index] = c.Node.Clone()
		case vdom.OpReplace:
			if c.Index < 0 || c.Index >= len(n.Children) {
				return root, errors.New("R202")
			}
			n.Children[c.Index] = c.Node.Clone()
		default:
			if c.Index < 0 || c.Index >= len(n.Children) {
				return root, errors.New("R202")
			}
			n.Children = append(n.Children[:c.Index], n.Children[c.Index+1:]...)
			if len(n.Children) == 0 {
				n.Children = nil
			}
		}
	}
	return root, nil
}

// setStrings adds or removes s in a sorted set.
func setStrings(set []string, s string, present bool) []string {
	i := sort.SearchStrings(set, s)
	found := i < len(set) && set[i] == s
	switch {
	case present && !found:
		set = append(set, "")
		copy(set[i+1:], set[i:])
		set[i] = s
	case !present && found:
		set = append(set[:i], set[i+1:]...)
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Clone returns a deep copy of the subtree.
func (w *WireNode) Clone() *WireNode {
	if w == nil {
		return nil
	}
	c := *w
	if w.Attrs != nil {
		c.Attrs = make(map[string]string, len(w.Attrs))
		for k, v := range w.Attrs {
			c.Attrs[k] = v
		}
	}
	c.Classes = append([]string(nil), w.Classes...)
	c.Listeners = append([]string(nil), w.Listeners...)
	c.Children = nil
	for _, ch := range w.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return &c
}
