package protocol

import (
	"sort"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// nullMarker encodes an absent node.
const nullMarker = 0xFF

// WireNode is the serializable form of a VNode. Listeners are reduced to
// their event kinds.
type WireNode struct {
	Kind      vdom.VKind
	Tag       string
	Attrs     map[string]string
	Classes   []string // Sorted
	Listeners []string // Sorted event kinds
	Children  []*WireNode
	Text      string
}

// NodeToWire converts a virtual tree to wire form.
func NodeToWire[M any](v *vdom.VNode[M]) *WireNode {
	if v == nil {
		return nil
	}
	if v.IsText() {
		return &WireNode{Kind: vdom.KindText, Text: v.Text}
	}

	w := &WireNode{
		Kind:    vdom.KindElement,
		Tag:     v.Tag,
		Classes: v.Classes.Names(),
	}
	if len(v.Attrs) > 0 {
		w.Attrs = make(map[string]string, len(v.Attrs))
		for k, val := range v.Attrs {
			w.Attrs[k] = val
		}
	}
	if len(w.Classes) == 0 {
		w.Classes = nil
	}
	for _, l := range v.Listeners {
		w.Listeners = append(w.Listeners, l.Kind())
	}
	sort.Strings(w.Listeners)

	if len(v.Children) > 0 {
		w.Children = make([]*WireNode, 0, len(v.Children))
		for _, c := range v.Children {
			w.Children = append(w.Children, NodeToWire(c))
		}
	}
	return w
}

// Count returns the number of nodes in the subtree.
func (w *WireNode) Count() int {
	if w == nil {
		return 0
	}
	n := 1
	for _, c := range w.Children {
		n += c.Count()
	}
	return n
}

// EncodeNode encodes a WireNode. Attributes are written in key order so
// equal trees always encode to equal bytes.
func EncodeNode(e *Encoder, w *WireNode) {
	if w == nil {
		e.WriteByte(nullMarker)
		return
	}

	e.WriteByte(byte(w.Kind))
	if w.Kind == vdom.KindText {
		e.WriteString(w.Text)
		return
	}

	e.WriteString(w.Tag)

	keys := make([]string, 0, len(w.Attrs))
	for k := range w.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.WriteUvarint(uint64(len(keys)))
	for _, k := range keys {
		e.WriteString(k)
		e.WriteString(w.Attrs[k])
	}

	e.WriteStrings(w.Classes)
	e.WriteStrings(w.Listeners)

	e.WriteUvarint(uint64(len(w.Children)))
	for _, c := range w.Children {
		EncodeNode(e, c)
	}
}

// DecodeNode decodes a WireNode, enforcing MaxNodeDepth.
func DecodeNode(d *Decoder) (*WireNode, error) {
	return decodeNodeWithDepth(d, 0)
}

func decodeNodeWithDepth(d *Decoder, depth int) (*WireNode, error) {
	if err := checkDepth(depth, MaxNodeDepth); err != nil {
		return nil, err
	}

	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if kind == nullMarker {
		return nil, nil
	}

	w := &WireNode{Kind: vdom.VKind(kind)}
	switch w.Kind {
	case vdom.KindText:
		if w.Text, err = d.ReadString(); err != nil {
			return nil, err
		}
		return w, nil
	case vdom.KindElement:
	default:
		return nil, errors.New("R403").WithDetailf("unknown node kind 0x%02x", kind)
	}

	if w.Tag, err = d.ReadString(); err != nil {
		return nil, err
	}

	attrCount, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if attrCount > 0 {
		w.Attrs = make(map[string]string, attrCount)
		for i := 0; i < attrCount; i++ {
			key, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			value, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			w.Attrs[key] = value
		}
	}

	if w.Classes, err = d.ReadStrings(); err != nil {
		return nil, err
	}
	if w.Listeners, err = d.ReadStrings(); err != nil {
		return nil, err
	}

	childCount, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if childCount > 0 {
		w.Children = make([]*WireNode, childCount)
		for i := range w.Children {
			child, err := decodeNodeWithDepth(d, depth+1)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, errors.New("R403").WithDetail("null child node")
			}
			w.Children[i] = child
		}
	}
	return w, nil
}
