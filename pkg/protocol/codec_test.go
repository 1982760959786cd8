package protocol

import (
	stderrors "errors"
	"io"
	"math"
	"testing"
)

func TestUvarintEncoding(t *testing.T) {
	tests := []struct {
		value uint64
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xAC, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, tc := range tests {
		e := NewEncoder()
		e.WriteUvarint(tc.value)
		if got := e.Bytes(); string(got) != string(tc.bytes) {
			t.Errorf("WriteUvarint(%d) = %x, want %x", tc.value, got, tc.bytes)
		}

		v, err := NewDecoder(tc.bytes).ReadUvarint()
		if err != nil || v != tc.value {
			t.Errorf("ReadUvarint(%x) = %d, %v, want %d", tc.bytes, v, err, tc.value)
		}
	}
}

func TestSvarintRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 63, -64, math.MaxInt64, math.MinInt64} {
		e := NewEncoder()
		e.WriteSvarint(v)
		got, err := NewDecoder(e.Bytes()).ReadSvarint()
		if err != nil || got != v {
			t.Errorf("Svarint round trip of %d = %d, %v", v, got, err)
		}
	}
}

func TestEncoderDecoderPrimitives(t *testing.T) {
	e := NewEncoder()
	e.WriteByte(0x42)
	e.WriteString("héllo")
	e.WriteBool(true)
	e.WriteBool(false)
	e.WriteUint32(0xDEADBEEF)
	e.WriteUint64(1 << 40)
	e.WriteStrings([]string{"a", "bc"})

	d := NewDecoder(e.Bytes())
	if b, _ := d.ReadByte(); b != 0x42 {
		t.Errorf("ReadByte() = %x", b)
	}
	if s, _ := d.ReadString(); s != "héllo" {
		t.Errorf("ReadString() = %q", s)
	}
	if b, _ := d.ReadBool(); !b {
		t.Error("ReadBool() = false, want true")
	}
	if b, _ := d.ReadBool(); b {
		t.Error("ReadBool() = true, want false")
	}
	if v, _ := d.ReadUint32(); v != 0xDEADBEEF {
		t.Errorf("ReadUint32() = %x", v)
	}
	if v, _ := d.ReadUint64(); v != 1<<40 {
		t.Errorf("ReadUint64() = %d", v)
	}
	if ss, _ := d.ReadStrings(); len(ss) != 2 || ss[1] != "bc" {
		t.Errorf("ReadStrings() = %v", ss)
	}
	if !d.EOF() || d.Remaining() != 0 {
		t.Errorf("decoder not at EOF, %d bytes left", d.Remaining())
	}

	e.Reset()
	if e.Len() != 0 {
		t.Errorf("Len() after Reset = %d", e.Len())
	}
}

func TestDecoderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(*Decoder) error
		want error
	}{
		{"short varint", []byte{0x80}, func(d *Decoder) error { _, err := d.ReadUvarint(); return err }, io.ErrUnexpectedEOF},
		{"varint overflow", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, func(d *Decoder) error { _, err := d.ReadUvarint(); return err }, ErrVarintOverflow},
		{"string past end", []byte{0x05, 'a'}, func(d *Decoder) error { _, err := d.ReadString(); return err }, io.ErrUnexpectedEOF},
		{"invalid bool", []byte{0x02}, func(d *Decoder) error { _, err := d.ReadBool(); return err }, ErrInvalidBool},
		{"huge collection", []byte{0xFF, 0xFF, 0xFF, 0x7F}, func(d *Decoder) error { _, err := d.ReadCollectionCount(); return err }, ErrCollectionTooLarge},
		{"count past end", []byte{0x03, 0x00}, func(d *Decoder) error { _, err := d.ReadCollectionCount(); return err }, io.ErrUnexpectedEOF},
		{"short uint32", []byte{0x00, 0x01}, func(d *Decoder) error { _, err := d.ReadUint32(); return err }, io.ErrUnexpectedEOF},
		{"huge index", []byte{0xFF, 0xFF, 0xFF, 0x7F}, func(d *Decoder) error { _, err := d.ReadIndex(); return err }, ErrCollectionTooLarge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.read(NewDecoder(tc.data)); !stderrors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}
