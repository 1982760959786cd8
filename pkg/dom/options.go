package dom

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for render passes.
const defaultTracerName = "vreconcile"

// Option configures a Renderer.
type Option func(*rendererConfig)

type rendererConfig struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
}

// WithLogger sets the logger (default: slog.Default() with component=dom).
func WithLogger(logger *slog.Logger) Option {
	return func(c *rendererConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for render pass spans.
// Default: the global provider's "vreconcile" tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *rendererConfig) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithObserver sets an Observer notified after every pass.
func WithObserver(o Observer) Option {
	return func(c *rendererConfig) {
		c.observer = o
	}
}

func defaultRendererConfig() rendererConfig {
	return rendererConfig{
		logger: slog.Default().With("component", "dom"),
		tracer: otel.Tracer(defaultTracerName),
	}
}
