package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/dom"
)

// Config configures the render pass collector.
type Config struct {
	// Namespace is the metrics namespace (default: "vreconcile").
	Namespace string

	// Subsystem is the metrics subsystem (default: "render").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for pass duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "vreconcile",
		Subsystem: "render",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records render passes. It implements dom.Observer.
type Collector struct {
	passesTotal  *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	changesTotal *prometheus.CounterVec
	passErrors   *prometheus.CounterVec
	liveHandles  *prometheus.GaugeVec
}

var _ dom.Observer = (*Collector)(nil)

// New creates a Collector and registers its metrics.
//
// Metrics collected:
//   - passes_total: passes by mount and status (success, error)
//   - pass_duration_seconds: diff+apply duration by mount
//   - changes_total: applied changes by mount, target and op
//   - pass_errors_total: failed passes by mount and error code
//   - live_handles: attached listener handles by mount
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		passesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "passes_total",
			Help:        "Total number of render passes",
			ConstLabels: config.ConstLabels,
		}, []string{"mount", "status"}),

		passDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pass_duration_seconds",
			Help:        "Render pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"mount"}),

		changesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "changes_total",
			Help:        "Total number of changes produced by render passes",
			ConstLabels: config.ConstLabels,
		}, []string{"mount", "target", "op"}),

		passErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pass_errors_total",
			Help:        "Total number of aborted render passes by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"mount", "code"}),

		liveHandles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_handles",
			Help:        "Number of attached listener handles",
			ConstLabels: config.ConstLabels,
		}, []string{"mount"}),
	}
}

// ObservePass implements dom.Observer.
func (c *Collector) ObservePass(s dom.PassStats) {
	c.passDuration.WithLabelValues(s.Mount).Observe(s.Duration.Seconds())
	c.liveHandles.WithLabelValues(s.Mount).Set(float64(s.LiveHandles))

	status := "success"
	if s.Err != nil {
		status = "error"
		c.passErrors.WithLabelValues(s.Mount, errorCode(s.Err)).Inc()
	}
	c.passesTotal.WithLabelValues(s.Mount, status).Inc()

	for k, n := range s.Tally {
		c.changesTotal.WithLabelValues(s.Mount, k.Target.String(), k.Op.String()).Add(float64(n))
	}
}

// errorCode keeps the code label low-cardinality.
func errorCode(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	return "unknown"
}
