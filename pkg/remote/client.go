package remote

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/protocol"
)

var errNoDispatcher = errors.New("R302").WithDetail("this mount does not accept events")

// client is one websocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.config.SendQueue),
		done: make(chan struct{}),
	}
}

// enqueue queues a frame without blocking. It reports false when the
// client's backlog is full.
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) sendError(err error, fatal bool) {
	em := protocol.NewErrorMessage(err, fatal)
	if !c.enqueue(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)).Encode()) {
		c.close()
	}
}

// readLoop reads frames until the connection fails.
func (c *client) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	cfg := c.hub.config
	c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.hub.logger.Error("read error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			c.sendError(errors.New("R403").Wrap(err), false)
			continue
		}

		switch frame.Type {
		case protocol.FrameEvent:
			c.hub.dispatch(c, frame.Payload)
		default:
			c.sendError(errors.New("R403").WithDetailf("unexpected %s frame from client", frame.Type), false)
		}
	}
}

// writeLoop writes queued frames and keeps the connection alive with pings.
func (c *client) writeLoop() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
