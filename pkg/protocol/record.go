package protocol

import (
	"time"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// PassRecord is one applied render pass: the payload of a FrameChanges
// frame and the unit stored by package snapshot.
type PassRecord struct {
	Seq     uint64
	Mount   string
	Time    time.Time
	Changes []WireChange
}

// NewRecord builds a record from an applied change sequence.
func NewRecord[M any](seq uint64, mount string, at time.Time, changes []vdom.Change[M]) *PassRecord {
	return &PassRecord{
		Seq:     seq,
		Mount:   mount,
		Time:    at,
		Changes: ChangesToWire(changes),
	}
}

// EncodeRecord encodes a PassRecord to bytes.
func EncodeRecord(r *PassRecord) []byte {
	e := NewEncoder()
	EncodeRecordTo(e, r)
	return e.Bytes()
}

// EncodeRecordTo encodes a PassRecord using the provided encoder.
func EncodeRecordTo(e *Encoder, r *PassRecord) {
	e.WriteUvarint(r.Seq)
	e.WriteString(r.Mount)
	e.WriteSvarint(r.Time.UnixNano())
	EncodeChanges(e, r.Changes)
}

// DecodeRecord decodes a PassRecord. Errors carry code R403.
func DecodeRecord(data []byte) (*PassRecord, error) {
	d := NewDecoder(data)
	r, err := DecodeRecordFrom(d)
	if err == nil {
		err = d.finish()
	}
	if err != nil {
		return nil, malformed(err, "pass record")
	}
	return r, nil
}

// DecodeRecordFrom decodes a PassRecord from a decoder.
func DecodeRecordFrom(d *Decoder) (*PassRecord, error) {
	var r PassRecord
	var err error

	if r.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if r.Mount, err = d.ReadString(); err != nil {
		return nil, err
	}
	nanos, err := d.ReadSvarint()
	if err != nil {
		return nil, err
	}
	r.Time = time.Unix(0, nanos).UTC()
	if r.Changes, err = DecodeChanges(d); err != nil {
		return nil, err
	}
	return &r, nil
}

// Snapshot is the full tree of a mount at a given pass: the payload of a
// FrameSnapshot frame.
type Snapshot struct {
	Seq   uint64
	Mount string
	Root  *WireNode
}

// EncodeSnapshot encodes a Snapshot to bytes.
func EncodeSnapshot(s *Snapshot) []byte {
	e := NewEncoder()
	e.WriteUvarint(s.Seq)
	e.WriteString(s.Mount)
	EncodeNode(e, s.Root)
	return e.Bytes()
}

// DecodeSnapshot decodes a Snapshot. Errors carry code R403.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	d := NewDecoder(data)
	s, err := decodeSnapshot(d)
	if err == nil {
		err = d.finish()
	}
	if err != nil {
		return nil, malformed(err, "snapshot")
	}
	return s, nil
}

func decodeSnapshot(d *Decoder) (*Snapshot, error) {
	var s Snapshot
	var err error
	if s.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if s.Mount, err = d.ReadString(); err != nil {
		return nil, err
	}
	if s.Root, err = DecodeNode(d); err != nil {
		return nil, err
	}
	return &s, nil
}

// malformed wraps a decoding failure in an R403 error unless it already
// carries a code.
func malformed(err error, what string) error {
	if e, ok := err.(*errors.Error); ok {
		return e
	}
	return errors.New("R403").WithDetail(what).Wrap(err)
}
