package remote

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "vreconcile"

// Config configures a Hub.
type Config struct {
	// ReadBufferSize and WriteBufferSize size the websocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header. Nil accepts same-origin
	// requests only.
	CheckOrigin func(r *http.Request) bool

	// MaxMessageSize limits incoming frames.
	MaxMessageSize int64

	// ReadTimeout closes a client that sent nothing, pongs included.
	ReadTimeout time.Duration

	// WriteTimeout bounds one frame write.
	WriteTimeout time.Duration

	// PingInterval is how often the hub pings idle clients. Must be less
	// than ReadTimeout.
	PingInterval time.Duration

	// SendQueue is the per-client frame backlog. A client that falls
	// further behind is disconnected.
	SendQueue int

	Logger *slog.Logger

	// Tracer traces dispatched client events. Default: the global
	// provider's "vreconcile" tracer.
	Tracer trace.Tracer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxMessageSize:  64 * 1024,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		SendQueue:       64,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		c = d
	}
	out := *c
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.PingInterval <= 0 || out.PingInterval >= out.ReadTimeout {
		out.PingInterval = out.ReadTimeout / 2
	}
	if out.SendQueue <= 0 {
		out.SendQueue = d.SendQueue
	}
	if out.Logger == nil {
		out.Logger = slog.Default().With("component", "remote")
	}
	if out.Tracer == nil {
		out.Tracer = otel.Tracer(tracerName)
	}
	return &out
}
