package treedoc

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Operation is one RFC 6902 operation.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// JSONPatch translates a change sequence computed against prev into JSON
// Patch operations over prev's canonical JSON form. Applying the result to
// prev yields the canonical form of the tree the changes lead to.
//
// Empty collections are omitted from the canonical form, so the first entry
// of a collection adds the whole member and the last removal drops it.
func JSONPatch(prev *Document, changes []vdom.Change[Message]) ([]Operation, error) {
	mirror := prev.Canonical()
	var ops []Operation
	for _, c := range changes {
		op, err := patchOne(mirror, c)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func patchOne(doc *Document, c vdom.Change[Message]) (Operation, error) {
	if c.Child != nil && len(c.Path) == 0 {
		return patchRoot(doc, c.Child)
	}

	n, ptr, err := resolve(doc, c.Path)
	if err != nil {
		return Operation{}, err
	}
	if n.IsText() {
		return Operation{}, errors.New("R202").WithDetailf("%s is a text node", c.Path)
	}

	switch {
	case c.Attr != nil:
		p := c.Attr
		if p.Op == vdom.OpRemove {
			if _, ok := n.Attrs[p.ID]; !ok {
				return Operation{}, errors.New("R202").WithDetailf("no attribute %q", p.ID)
			}
			if len(n.Attrs) == 1 {
				n.Attrs = nil
				return Operation{Op: "remove", Path: ptr + "/attrs"}, nil
			}
			delete(n.Attrs, p.ID)
			return Operation{Op: "remove", Path: ptr + "/attrs/" + escape(p.ID)}, nil
		}
		if len(n.Attrs) == 0 {
			n.Attrs = map[string]string{p.ID: p.Value}
			return Operation{Op: "add", Path: ptr + "/attrs", Value: map[string]string{p.ID: p.Value}}, nil
		}
		n.Attrs[p.ID] = p.Value
		return Operation{Op: opName(p.Op), Path: ptr + "/attrs/" + escape(p.ID), Value: p.Value}, nil

	case c.Class != nil:
		name := c.Class.ID
		i := sort.SearchStrings(n.Classes, name)
		found := i < len(n.Classes) && n.Classes[i] == name
		if c.Class.Op == vdom.OpRemove {
			if !found {
				return Operation{}, errors.New("R202").WithDetailf("no class %q", name)
			}
			if len(n.Classes) == 1 {
				n.Classes = nil
				return Operation{Op: "remove", Path: ptr + "/classes"}, nil
			}
			n.Classes = append(n.Classes[:i], n.Classes[i+1:]...)
			return Operation{Op: "remove", Path: ptr + "/classes/" + strconv.Itoa(i)}, nil
		}
		if found {
			return Operation{}, errors.New("R104").WithDetailf("class %q already present", name)
		}
		if len(n.Classes) == 0 {
			n.Classes = []string{name}
			return Operation{Op: "add", Path: ptr + "/classes", Value: []string{name}}, nil
		}
		n.Classes = append(n.Classes, "")
		copy(n.Classes[i+1:], n.Classes[i:])
		n.Classes[i] = name
		return Operation{Op: "add", Path: ptr + "/classes/" + strconv.Itoa(i), Value: name}, nil

	case c.Listener != nil:
		p := c.Listener
		if p.Op == vdom.OpRemove {
			if _, ok := n.On[p.ID]; !ok {
				return Operation{}, errors.New("R202").WithDetailf("no %s listener", p.ID)
			}
			if len(n.On) == 1 {
				n.On = nil
				return Operation{Op: "remove", Path: ptr + "/on"}, nil
			}
			delete(n.On, p.ID)
			return Operation{Op: "remove", Path: ptr + "/on/" + escape(p.ID)}, nil
		}
		src := SourceOf(p.Value)
		if len(n.On) == 0 {
			n.On = map[string]string{p.ID: src}
			return Operation{Op: "add", Path: ptr + "/on", Value: map[string]string{p.ID: src}}, nil
		}
		n.On[p.ID] = src
		return Operation{Op: opName(p.Op), Path: ptr + "/on/" + escape(p.ID), Value: src}, nil

	case c.Child != nil:
		p := c.Child
		idx := strconv.Itoa(p.ID)
		switch p.Op {
		case vdom.OpAdd:
			if p.ID > len(n.Children) {
				return Operation{}, errors.New("R202").WithDetailf("child %d out of range", p.ID)
			}
			node := FromVNode(p.Value).clone()
			if len(n.Children) == 0 {
				n.Children = []*Node{node}
				return Operation{Op: "add", Path: ptr + "/children", Value: []*Node{node}}, nil
			}
			n.Children = append(n.Children, nil)
			copy(n.Children[p.ID+1:], n.Children[p.ID:])
			n.Children[p.ID] = node
			return Operation{Op: "add", Path: ptr + "/children/" + idx, Value: node}, nil
		case vdom.OpReplace:
			if p.ID >= len(n.Children) {
				return Operation{}, errors.New("R202").WithDetailf("child %d out of range", p.ID)
			}
			node := FromVNode(p.Value).clone()
			n.Children[p.ID] = node
			return Operation{Op: "replace", Path: ptr + "/children/" + idx, Value: node}, nil
		default:
			if p.ID >= len(n.Children) {
				return Operation{}, errors.New("R202").WithDetailf("child %d out of range", p.ID)
			}
			if len(n.Children) == 1 {
				n.Children = nil
				return Operation{Op: "remove", Path: ptr + "/children"}, nil
			}
			n.Children = append(n.Children[:p.ID], n.Children[p.ID+1:]...)
			return Operation{Op: "remove", Path: ptr + "/children/" + idx}, nil
		}
	}
	return Operation{}, errors.New("R202").WithDetail("empty change")
}

func patchRoot(doc *Document, p *vdom.Patch[int, *vdom.VNode[Message]]) (Operation, error) {
	if p.ID != 0 {
		return Operation{}, errors.New("R202").WithDetailf("mount container has one child, got index %d", p.ID)
	}
	switch p.Op {
	case vdom.OpRemove:
		if doc.Root == nil {
			return Operation{}, errors.New("R202").WithDetail("no root to remove")
		}
		doc.Root = nil
		return Operation{Op: "remove", Path: "/root"}, nil
	default:
		doc.Root = FromVNode(p.Value).clone()
		return Operation{Op: opName(p.Op), Path: "/root", Value: doc.Root}, nil
	}
}

// resolve walks path from the mount container and returns the node and its
// JSON pointer.
func resolve(doc *Document, path vdom.Path) (*Node, string, error) {
	if path[0] != 0 || doc.Root == nil {
		return nil, "", errors.New("R202").WithDetailf("no root at %s", path)
	}
	n, ptr := doc.Root, "/root"
	for _, i := range path[1:] {
		if n.IsText() || i < 0 || i >= len(n.Children) {
			return nil, "", errors.New("R202").WithDetailf("no node at %s", path)
		}
		n = n.Children[i]
		ptr += "/children/" + strconv.Itoa(i)
	}
	return n, ptr, nil
}

func opName(op vdom.Op) string {
	if op == vdom.OpReplace {
		return "replace"
	}
	return "add"
}

// escape encodes a JSON Pointer reference token.
func escape(token string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(token)
}

// ApplyPatch applies JSON Patch operations to the canonical form of doc and
// decodes the result.
func ApplyPatch(doc *Document, ops []Operation) (*Document, error) {
	original, err := doc.MarshalCanonical()
	if err != nil {
		return nil, errors.New("R402").Wrap(err)
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, errors.New("R402").Wrap(err)
	}
	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, errors.New("R402").WithDetail("decode json patch").Wrap(err)
	}
	patched, err := patch.Apply(original)
	if err != nil {
		return nil, errors.New("R402").WithDetail("apply json patch").Wrap(err)
	}
	return Parse(patched, FormatJSON)
}
