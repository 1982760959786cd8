package protocol

import (
	stderrors "errors"
	"io"
)

// FrameHeaderSize is the size of the frame header in bytes.
const FrameHeaderSize = 5

// FrameType identifies the payload of a frame.
type FrameType uint8

const (
	FrameSnapshot FrameType = 0x01 // Server → client: full tree of a mount
	FrameChanges  FrameType = 0x02 // Server → client: one applied pass
	FrameEvent    FrameType = 0x03 // Client → server: native event
	FrameError    FrameType = 0x04 // Either direction: error report
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameSnapshot:
		return "Snapshot"
	case FrameChanges:
		return "Changes"
	case FrameEvent:
		return "Event"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Frame errors.
var (
	ErrFrameTooLarge    = stderrors.New("protocol: frame payload too large")
	ErrInvalidFrameType = stderrors.New("protocol: invalid frame type")
)

// Frame is one message on a stream or websocket.
//
// Wire format (5 bytes header + variable payload):
//
//	┌─────────────┬───────────────────────────────┐
//	│ Frame Type  │ Payload Length                │
//	│ (1 byte)    │ (4 bytes, big-endian)         │
//	└─────────────┴───────────────────────────────┘
//	│  Payload (variable length)                  │
//	└─────────────────────────────────────────────┘
type Frame struct {
	Type    FrameType
	Payload []byte
}

// NewFrame creates a frame.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame including the header.
func (f *Frame) Encode() []byte {
	e := NewEncoder()
	f.EncodeTo(e)
	return e.Bytes()
}

// EncodeTo encodes the frame using the provided encoder.
func (f *Frame) EncodeTo(e *Encoder) {
	e.WriteByte(byte(f.Type))
	e.WriteUint32(uint32(len(f.Payload)))
	e.WriteBytes(f.Payload)
}

func validFrameType(ft FrameType) bool {
	return ft >= FrameSnapshot && ft <= FrameError
}

// DecodeFrame decodes exactly one frame from data.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder(data)
	ft, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if !validFrameType(FrameType(ft)) {
		return nil, ErrInvalidFrameType
	}
	length, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if length > HardMaxAllocation {
		return nil, ErrFrameTooLarge
	}
	if int(length) != d.Remaining() {
		if int(length) > d.Remaining() {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, ErrTrailingBytes
	}

	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:])
	return &Frame{Type: FrameType(ft), Payload: payload}, nil
}

// ReadFrame reads a complete frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	ft := FrameType(header[0])
	if !validFrameType(ft) {
		return nil, ErrInvalidFrameType
	}
	length := uint32(header[1])<<24 | uint32(header[2])<<16 | uint32(header[3])<<8 | uint32(header[4])
	if length > HardMaxAllocation {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return &Frame{Type: ft, Payload: payload}, nil
}

// WriteFrame writes f to w.
func WriteFrame(w io.Writer, f *Frame) error {
	_, err := w.Write(f.Encode())
	return err
}
