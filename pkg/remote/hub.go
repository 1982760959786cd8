package remote

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/protocol"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Dispatcher delivers client events to backend elements.
type Dispatcher interface {
	DispatchPath(path vdom.Path, ev vdom.Event) (int, error)
}

// Hub mirrors one mount to its websocket clients.
type Hub struct {
	mount      string
	dispatcher Dispatcher
	config     *Config
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	root    *protocol.WireNode
	seq     uint64
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub for mount. dispatcher may be nil, in which case
// client events are rejected.
func NewHub(mount string, dispatcher Dispatcher, config *Config) *Hub {
	config = config.withDefaults()
	return &Hub{
		mount:      mount,
		dispatcher: dispatcher,
		config:     config,
		logger:     config.Logger.With("mount", mount),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		clients: make(map[*client]struct{}),
	}
}

// Mirror connects r to h: the hub starts from r's current tree and
// publishes every later pass.
func Mirror[M any](h *Hub, r *dom.Renderer[M]) {
	r.AddHook(Publisher[M](h))
	tree, seq := r.State()
	h.Reset(protocol.NodeToWire(tree.Root), seq)
}

// Publisher returns a renderer hook that publishes every pass to h.
func Publisher[M any](h *Hub) dom.PassHook[M] {
	return func(stats dom.PassStats, changes []vdom.Change[M]) {
		h.Publish(protocol.NewRecord(stats.Seq, stats.Mount, time.Now().UTC(), changes))
	}
}

// Reset replaces the mirrored tree and sends a snapshot to every client.
// A tree older than the mirror is ignored.
func (h *Hub) Reset(root *protocol.WireNode, seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if seq < h.seq {
		return
	}
	h.root, h.seq = root, seq
	h.broadcast(protocol.NewFrame(protocol.FrameSnapshot, h.snapshotLocked()).Encode())
}

// Publish applies rec to a copy of the mirror and forwards it to every client.
// Records at or below the mirror's sequence are ignored.
func (h *Hub) Publish(rec *protocol.PassRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rec.Seq <= h.seq {
		return
	}

	root, err := protocol.Replay(h.root.Clone(), rec.Changes)
	if err != nil {
		// The mirror no longer matches the mount; clients cannot follow
		// the change stream either.
		h.logger.Error("mirror diverged", "seq", rec.Seq, "error", err)
		h.disconnectAllLocked()
		return
	}
	h.root, h.seq = root, rec.Seq
	h.broadcast(protocol.NewFrame(protocol.FrameChanges, protocol.EncodeRecord(rec)).Encode())
}

// Seq returns the sequence number of the mirrored tree.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Snapshot returns the encoded mirrored tree.
func (h *Hub) Snapshot() *protocol.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &protocol.Snapshot{Seq: h.seq, Mount: h.mount, Root: h.root.Clone()}
}

func (h *Hub) snapshotLocked() []byte {
	return protocol.EncodeSnapshot(&protocol.Snapshot{Seq: h.seq, Mount: h.mount, Root: h.root})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.disconnectAllLocked()
}

// ServeHTTP upgrades the request to a websocket client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(h.config.MaxMessageSize)

	c := newClient(h, conn)

	// Registering under the lock orders the snapshot before any later
	// change frame.
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	c.enqueue(protocol.NewFrame(protocol.FrameSnapshot, h.snapshotLocked()).Encode())
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", "remote", r.RemoteAddr, "clients", n)

	go c.writeLoop()
	c.readLoop()
}

// broadcast queues frame on every client, dropping clients that are too
// far behind.
func (h *Hub) broadcast(frame []byte) {
	for c := range h.clients {
		if !c.enqueue(frame) {
			h.logger.Warn("client too slow, disconnecting", "seq", h.seq)
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *Hub) disconnectAllLocked() {
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("client disconnected", "clients", n)
	}
}

// dispatch delivers a client event and reports failures back to the client.
func (h *Hub) dispatch(c *client, payload []byte) {
	msg, err := protocol.DecodeEvent(payload)
	if err != nil {
		c.sendError(err, false)
		return
	}
	if h.dispatcher == nil {
		c.sendError(errNoDispatcher, false)
		return
	}

	_, span := h.config.Tracer.Start(context.Background(), "remote.event",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("vdom.mount", h.mount),
			attribute.String("vdom.path", msg.Path.String()),
			attribute.String("vdom.event_kind", msg.Kind),
		),
	)
	defer span.End()

	n, err := h.dispatcher.DispatchPath(msg.Path, msg.ToEvent())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Debug("event dispatch failed", "path", msg.Path, "kind", msg.Kind, "error", err)
		c.sendError(err, false)
		return
	}
	span.SetAttributes(attribute.Int("vdom.listeners", n))
	span.SetStatus(codes.Ok, "")
	h.logger.Debug("event dispatched", "path", msg.Path, "kind", msg.Kind, "listeners", n)
}
