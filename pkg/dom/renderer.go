package dom

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// PassStats summarises one render pass.
type PassStats struct {
	Mount       string
	Seq         uint64 // Sequence number of the pass, starting at 1
	Changes     int
	Tally       map[vdom.TallyKey]int
	Duration    time.Duration
	Err         error
	LiveHandles int
}

// Observer receives the stats of every pass, failed ones included.
type Observer interface {
	ObservePass(PassStats)
}

// PassHook runs after every successful pass with the applied changes.
type PassHook[M any] func(PassStats, []vdom.Change[M])

// Renderer drives render passes for one mount: it diffs each new tree
// against the last applied one, applies the changes and keeps the new tree
// as the reference for the next pass.
type Renderer[M any] struct {
	id    string
	mount *Mount[M]

	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer

	mu      sync.RWMutex
	current *vdom.Tree[M]
	seq     uint64
	hooks   []PassHook[M]
}

// NewRenderer creates a renderer for the mount identified by id whose
// elements are children of container.
func NewRenderer[M any](id string, backend Backend, container Element, pool *vdom.Messages[M], opts ...Option) *Renderer[M] {
	config := defaultRendererConfig()
	for _, opt := range opts {
		opt(&config)
	}

	logger := config.logger.With("mount", id)
	mount := NewMount(backend, container, pool)
	mount.logger = logger

	return &Renderer[M]{
		id:       id,
		mount:    mount,
		logger:   logger,
		tracer:   config.tracer,
		observer: config.observer,
		current:  vdom.NewTree[M](id, nil),
	}
}

// ID returns the mount identity.
func (r *Renderer[M]) ID() string {
	return r.id
}

// Pool returns the messages pool shared by every attached listener.
func (r *Renderer[M]) Pool() *vdom.Messages[M] {
	return r.mount.Pool()
}

// AddHook registers a hook run after every successful pass.
func (r *Renderer[M]) AddHook(h PassHook[M]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Current returns the last successfully applied tree.
func (r *Renderer[M]) Current() *vdom.Tree[M] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Seq returns the sequence number of the last successful pass.
func (r *Renderer[M]) Seq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// State returns the current tree and the sequence number of the pass that
// applied it.
func (r *Renderer[M]) State() (*vdom.Tree[M], uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.seq
}

// LiveHandles returns the number of attached listener handles.
func (r *Renderer[M]) LiveHandles() int {
	return r.mount.LiveHandles()
}

// Render runs one pass from the current tree to next. A nil next renders
// an empty mount.
//
// On failure the current tree is kept, the mount is poisoned and Render
// keeps failing until Reset.
func (r *Renderer[M]) Render(ctx context.Context, next *vdom.Tree[M]) error {
	if next == nil {
		next = vdom.NewTree[M](r.id, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, span := r.tracer.Start(ctx, "vdom.render",
		trace.WithAttributes(attribute.String("vdom.mount", r.id)),
	)
	defer span.End()

	start := time.Now()
	stats := PassStats{Mount: r.id, Seq: r.seq + 1}

	changes, err := vdom.Diff(r.current, next)
	if err == nil {
		stats.Changes = len(changes)
		stats.Tally = vdom.Tally(changes)
		err = r.mount.Apply(changes)
	}
	stats.Duration = time.Since(start)
	stats.Err = err
	stats.LiveHandles = r.mount.LiveHandles()

	span.SetAttributes(
		attribute.Int("vdom.change_count", stats.Changes),
		attribute.Int("vdom.live_handles", stats.LiveHandles),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("render pass aborted",
			"seq", stats.Seq,
			"changes", stats.Changes,
			"error", err)
		r.observe(stats)
		return err
	}
	span.SetStatus(codes.Ok, "")

	r.current = next
	r.seq = stats.Seq

	r.logger.Debug("render pass applied",
		"seq", stats.Seq,
		"changes", stats.Changes,
		"live_handles", stats.LiveHandles,
		"duration", stats.Duration)

	r.observe(stats)
	for _, h := range r.hooks {
		h(stats, changes)
	}
	return nil
}

// Unmount renders the empty tree, detaching every listener.
func (r *Renderer[M]) Unmount(ctx context.Context) error {
	return r.Render(ctx, nil)
}

// Reset tears the mount down and forgets the current tree so the next
// Render starts from scratch. Use it to recover from an aborted pass.
//
// Hooks see the teardown as a pass that removes the root, so change logs
// stay replayable.
func (r *Renderer[M]) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	empty := vdom.NewTree[M](r.id, nil)
	teardown, _ := vdom.Diff(r.current, empty)

	start := time.Now()
	err := r.mount.Reset()
	r.current = empty
	if err != nil {
		r.logger.Warn("reset reported backend errors", "error", err)
	} else {
		r.logger.Info("mount reset")
	}

	if len(teardown) > 0 {
		r.seq++
		stats := PassStats{
			Mount:    r.id,
			Seq:      r.seq,
			Changes:  len(teardown),
			Tally:    vdom.Tally(teardown),
			Duration: time.Since(start),
		}
		for _, h := range r.hooks {
			h(stats, teardown)
		}
	}
	return err
}

func (r *Renderer[M]) observe(stats PassStats) {
	if r.observer != nil {
		r.observer.ObservePass(stats)
	}
}
