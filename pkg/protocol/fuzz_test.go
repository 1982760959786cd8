package protocol

import (
	"testing"
	"time"

	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// FuzzDecodeFrame checks that decoding arbitrary bytes doesn't panic.
func FuzzDecodeFrame(f *testing.F) {
	f.Add(NewFrame(FrameEvent, []byte{0x01, 0x02}).Encode())
	f.Add(NewFrame(FrameChanges, []byte("test")).Encode())

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = DecodeFrame(data)
	})
}

// FuzzDecodeRecord checks that decoding arbitrary bytes doesn't panic.
func FuzzDecodeRecord(f *testing.F) {
	prev := vdom.NewTree("app", vdom.Div[msg](vdom.Text[msg]("a")))
	next := vdom.NewTree("app", vdom.Div[msg](vdom.ID("x"), vdom.P[msg]("b")))
	changes, _ := vdom.Diff(prev, next)
	f.Add(EncodeRecord(NewRecord(1, "app", time.Unix(0, 0), changes)))
	f.Add([]byte{0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = DecodeRecord(data)
	})
}

// FuzzDecodeEvent checks that decoding arbitrary bytes doesn't panic.
func FuzzDecodeEvent(f *testing.F) {
	f.Add(EncodeEvent(&EventMessage{Path: vdom.Path{0}, Kind: "click"}))

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = DecodeEvent(data)
	})
}
