package protocol

import (
	"sort"

	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// EventMessage is a native event fired by a remote observer on the
// element at Path.
type EventMessage struct {
	Path   vdom.Path
	Kind   string
	Value  string
	Detail map[string]string
}

// ToEvent converts the message into the event delivered to listeners.
func (m *EventMessage) ToEvent() vdom.Event {
	ev := vdom.Event{Kind: m.Kind, Value: m.Value}
	if len(m.Detail) > 0 {
		ev.Detail = make(map[string]any, len(m.Detail))
		for k, v := range m.Detail {
			ev.Detail[k] = v
		}
	}
	return ev
}

// EncodeEvent encodes an EventMessage to bytes.
func EncodeEvent(m *EventMessage) []byte {
	e := NewEncoder()
	EncodePath(e, m.Path)
	e.WriteString(m.Kind)
	e.WriteString(m.Value)

	keys := make([]string, 0, len(m.Detail))
	for k := range m.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.WriteUvarint(uint64(len(keys)))
	for _, k := range keys {
		e.WriteString(k)
		e.WriteString(m.Detail[k])
	}
	return e.Bytes()
}

// DecodeEvent decodes an EventMessage. Errors carry code R403.
func DecodeEvent(data []byte) (*EventMessage, error) {
	d := NewDecoder(data)
	m, err := decodeEvent(d)
	if err == nil {
		err = d.finish()
	}
	if err != nil {
		return nil, malformed(err, "event")
	}
	return m, nil
}

func decodeEvent(d *Decoder) (*EventMessage, error) {
	var m EventMessage
	var err error

	if m.Path, err = DecodePath(d); err != nil {
		return nil, err
	}
	if m.Kind, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.Value, err = d.ReadString(); err != nil {
		return nil, err
	}
	n, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if n > 0 {
		m.Detail = make(map[string]string, n)
		for i := 0; i < n; i++ {
			k, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			v, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			m.Detail[k] = v
		}
	}
	return &m, nil
}
