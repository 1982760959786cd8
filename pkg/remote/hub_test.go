package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/memdom"
	"github.com/vango-dev/vreconcile/pkg/metrics"
	"github.com/vango-dev/vreconcile/pkg/protocol"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

type msg string

type fixture struct {
	doc      *memdom.Document
	renderer *dom.Renderer[msg]
	hub      *Hub
	server   *httptest.Server
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	collector := metrics.New(metrics.WithRegistry(reg))

	doc := memdom.NewDocument()
	r := dom.NewRenderer("app", doc, doc.Root(), vdom.NewMessages[msg](), dom.WithObserver(collector))
	hub := NewHub("app", doc, nil)
	Mirror(hub, r)

	srv := httptest.NewServer(NewRouter(hub, reg))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &fixture{doc: doc, renderer: r, hub: hub, server: srv, registry: reg}
}

func (f *fixture) render(t *testing.T, root *vdom.VNode[msg]) {
	t.Helper()
	if err := f.renderer.Render(context.Background(), vdom.NewTree("app", root)); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame *protocol.Frame) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func TestClientFollowsMount(t *testing.T) {
	f := newFixture(t)
	first := vdom.Div[msg](vdom.ID("app"), vdom.Text[msg]("0"))
	f.render(t, first)

	conn := f.dial(t)
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameSnapshot {
		t.Fatalf("first frame = %s, want Snapshot", frame.Type)
	}
	snap, err := protocol.DecodeSnapshot(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Seq != 1 || snap.Mount != "app" {
		t.Errorf("snapshot = seq %d mount %q", snap.Seq, snap.Mount)
	}
	if diff := cmp.Diff(protocol.NodeToWire(first), snap.Root); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	mirror := snap.Root
	views := []*vdom.VNode[msg]{
		vdom.Div[msg](vdom.ID("app"), vdom.Class("busy"), vdom.Text[msg]("1"), vdom.P[msg]()),
		vdom.Span[msg]("done"),
	}
	for i, v := range views {
		f.render(t, v)

		frame := readFrame(t, conn)
		if frame.Type != protocol.FrameChanges {
			t.Fatalf("frame %d = %s, want Changes", i, frame.Type)
		}
		rec, err := protocol.DecodeRecord(frame.Payload)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Seq != uint64(i+2) {
			t.Errorf("record seq = %d, want %d", rec.Seq, i+2)
		}
		if mirror, err = protocol.Replay(mirror, rec.Changes); err != nil {
			t.Fatalf("Replay() error = %v", err)
		}
		if diff := cmp.Diff(protocol.NodeToWire(v), mirror); diff != "" {
			t.Errorf("pass %d mirror mismatch (-want +got):\n%s", i, diff)
		}
	}

	if f.hub.Seq() != 3 || f.hub.Clients() != 1 {
		t.Errorf("hub seq=%d clients=%d", f.hub.Seq(), f.hub.Clients())
	}
}

func TestClientEvents(t *testing.T) {
	f := newFixture(t)
	f.render(t, vdom.Div[msg](vdom.Button[msg]("+", vdom.OnClick(func(ev vdom.Event) msg { return msg("inc:" + ev.Value) }))))

	conn := f.dial(t)
	readFrame(t, conn) // snapshot

	click := &protocol.EventMessage{Path: vdom.Path{0, 0}, Kind: "click", Value: "1"}
	sendFrame(t, conn, protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(click)))

	pool := f.renderer.Pool()
	select {
	case <-pool.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("no message after client event")
	}
	if got := pool.Drain(); len(got) != 1 || got[0] != "inc:1" {
		t.Errorf("Drain() = %v, want [inc:1]", got)
	}

	tests := []struct {
		name  string
		frame *protocol.Frame
		code  string
	}{
		{"unknown path", protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(&protocol.EventMessage{Path: vdom.Path{0, 5}, Kind: "click"})), "R202"},
		{"garbage event", protocol.NewFrame(protocol.FrameEvent, []byte{0xFF}), "R403"},
		{"server frame type", protocol.NewFrame(protocol.FrameChanges, nil), "R403"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendFrame(t, conn, tt.frame)
			frame := readFrame(t, conn)
			if frame.Type != protocol.FrameError {
				t.Fatalf("frame = %s, want Error", frame.Type)
			}
			em, err := protocol.DecodeErrorMessage(frame.Payload)
			if err != nil {
				t.Fatal(err)
			}
			if em.Code != tt.code || em.Fatal {
				t.Errorf("error message = %+v, want code %s", em, tt.code)
			}
		})
	}
}

func TestHubResetOnRendererReset(t *testing.T) {
	f := newFixture(t)
	f.render(t, vdom.Div[msg]("x"))

	conn := f.dial(t)
	readFrame(t, conn)

	f.renderer.Reset()
	frame := readFrame(t, conn)
	rec, err := protocol.DecodeRecord(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Changes[0].String(); got != "[] child remove 0" {
		t.Errorf("teardown change = %q", got)
	}
	if snap := f.hub.Snapshot(); snap.Root != nil || snap.Seq != 2 {
		t.Errorf("Snapshot() after reset = %+v", snap)
	}
}

func TestRouterEndpoints(t *testing.T) {
	f := newFixture(t)
	f.render(t, vdom.Div[msg]())

	resp, err := http.Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health struct {
		Mount   string `json:"mount"`
		Seq     uint64 `json:"seq"`
		Clients int    `json:"clients"`
	}
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if health.Mount != "app" || health.Seq != 1 || health.Clients != 0 {
		t.Errorf("healthz = %+v", health)
	}

	resp, err = http.Get(f.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "vreconcile_render_passes_total") {
		t.Errorf("/metrics missing pass counter:\n%s", body)
	}
}

func TestClosedHubRejectsClients(t *testing.T) {
	f := newFixture(t)
	f.hub.Close()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() should fail on a closed hub")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v, want 503", resp)
	}
}
