package protocol

import (
	"fmt"
	"strconv"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// WireChange is the serializable form of a vdom.Change.
type WireChange struct {
	Path   vdom.Path
	Target vdom.Target
	Op     vdom.Op
	Key    string    // Attribute, class or listener key
	Value  string    // Attribute value for Add and Replace
	Index  int       // Child index
	Node   *WireNode // Child payload for Add and Replace
}

// ChangeToWire converts one change.
func ChangeToWire[M any](c vdom.Change[M]) WireChange {
	w := WireChange{Path: c.Path, Target: c.Target(), Op: c.Op()}
	switch {
	case c.Attr != nil:
		w.Key, w.Value = c.Attr.ID, c.Attr.Value
	case c.Class != nil:
		w.Key = c.Class.ID
	case c.Listener != nil:
		w.Key = c.Listener.ID
	case c.Child != nil:
		w.Index = c.Child.ID
		w.Node = NodeToWire(c.Child.Value)
	}
	return w
}

// ChangesToWire converts a change sequence.
func ChangesToWire[M any](changes []vdom.Change[M]) []WireChange {
	out := make([]WireChange, len(changes))
	for i, c := range changes {
		out[i] = ChangeToWire(c)
	}
	return out
}

// String renders the change in the one-line form used by vdom.Change.
func (c WireChange) String() string {
	head := c.Path.String() + " " + c.Target.String() + " " + c.Op.String()
	switch c.Target {
	case vdom.TargetAttr:
		if c.Op == vdom.OpRemove {
			return head + " " + c.Key
		}
		return head + " " + c.Key + "=" + strconv.Quote(c.Value)
	case vdom.TargetChild:
		if c.Op == vdom.OpRemove {
			return fmt.Sprintf("%s %d", head, c.Index)
		}
		return fmt.Sprintf("%s %d %s", head, c.Index, c.Node.label())
	default:
		return head + " " + c.Key
	}
}

func (w *WireNode) label() string {
	switch {
	case w == nil:
		return "<nil>"
	case w.Kind == vdom.KindText:
		return strconv.Quote(w.Text)
	default:
		return "<" + w.Tag + ">"
	}
}

// EncodePath encodes an element path.
func EncodePath(e *Encoder, p vdom.Path) {
	e.WriteUvarint(uint64(len(p)))
	for _, idx := range p {
		e.WriteUvarint(uint64(idx))
	}
}

// DecodePath decodes an element path, enforcing MaxPathDepth.
func DecodePath(d *Decoder) (vdom.Path, error) {
	n, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if err := checkDepth(n, MaxPathDepth); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	p := make(vdom.Path, n)
	for i := range p {
		if p[i], err = d.ReadIndex(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// EncodeChange encodes one change.
func EncodeChange(e *Encoder, c WireChange) {
	EncodePath(e, c.Path)
	e.WriteByte(byte(c.Target))
	e.WriteByte(byte(c.Op))

	switch c.Target {
	case vdom.TargetAttr:
		e.WriteString(c.Key)
		if c.Op != vdom.OpRemove {
			e.WriteString(c.Value)
		}
	case vdom.TargetClass, vdom.TargetListener:
		e.WriteString(c.Key)
	case vdom.TargetChild:
		e.WriteUvarint(uint64(c.Index))
		if c.Op != vdom.OpRemove {
			EncodeNode(e, c.Node)
		}
	}
}

// DecodeChange decodes one change.
func DecodeChange(d *Decoder) (WireChange, error) {
	var c WireChange
	var err error

	if c.Path, err = DecodePath(d); err != nil {
		return c, err
	}
	target, err := d.ReadByte()
	if err != nil {
		return c, err
	}
	op, err := d.ReadByte()
	if err != nil {
		return c, err
	}
	c.Target, c.Op = vdom.Target(target), vdom.Op(op)
	if c.Op < vdom.OpAdd || c.Op > vdom.OpRemove {
		return c, errors.New("R403").WithDetailf("unknown op 0x%02x", op)
	}

	switch c.Target {
	case vdom.TargetAttr:
		if c.Key, err = d.ReadString(); err != nil {
			return c, err
		}
		if c.Op != vdom.OpRemove {
			c.Value, err = d.ReadString()
		}
	case vdom.TargetClass, vdom.TargetListener:
		c.Key, err = d.ReadString()
	case vdom.TargetChild:
		if c.Index, err = d.ReadIndex(); err != nil {
			return c, err
		}
		if c.Op != vdom.OpRemove {
			c.Node, err = DecodeNode(d)
		}
	default:
		return c, errors.New("R403").WithDetailf("unknown target 0x%02x", target)
	}
	return c, err
}

// EncodeChanges encodes a change sequence with a count prefix.
func EncodeChanges(e *Encoder, changes []WireChange) {
	e.WriteUvarint(uint64(len(changes)))
	for _, c := range changes {
		EncodeChange(e, c)
	}
}

// DecodeChanges decodes a count-prefixed change sequence.
func DecodeChanges(d *Decoder) ([]WireChange, error) {
	n, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	out := make([]WireChange, n)
	for i := range out {
		if out[i], err = DecodeChange(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}
