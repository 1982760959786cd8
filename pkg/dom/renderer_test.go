package dom_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/memdom"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

type recordingObserver struct {
	mu    sync.Mutex
	stats []dom.PassStats
}

func (o *recordingObserver) ObservePass(s dom.PassStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats = append(o.stats, s)
}

func TestRendererObserverAndLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := &recordingObserver{}

	doc := memdom.NewDocument()
	r := dom.NewRenderer("app", doc, doc.Root(), vdom.NewMessages[msg](),
		dom.WithLogger(logger),
		dom.WithObserver(obs),
		dom.WithTracer(noop.NewTracerProvider().Tracer("test")),
	)

	click := vdom.OnClick(func(vdom.Event) msg { return "c" })
	render(t, r, vdom.Div[msg](vdom.ID("a"), click))
	render(t, r, vdom.Div[msg](vdom.ID("b"), click, vdom.P[msg]()))
	r.Render(context.Background(), vdom.NewTree("elsewhere", vdom.Div[msg]()))

	if len(obs.stats) != 3 {
		t.Fatalf("observed %d passes, want 3", len(obs.stats))
	}

	first, second, failed := obs.stats[0], obs.stats[1], obs.stats[2]
	if first.Seq != 1 || first.Changes != 1 || first.LiveHandles != 1 || first.Err != nil {
		t.Errorf("first pass = %+v", first)
	}
	if second.Seq != 2 || second.Changes != 2 {
		t.Errorf("second pass = %+v", second)
	}
	if got := second.Tally[vdom.TallyKey{Target: vdom.TargetAttr, Op: vdom.OpReplace}]; got != 1 {
		t.Errorf("attr replace tally = %d, want 1", got)
	}
	if failed.Err == nil || failed.Seq != 3 || failed.Mount != "app" {
		t.Errorf("failed pass = %+v", failed)
	}
	if r.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", r.Seq())
	}

	out := logs.String()
	for _, want := range []string{"render pass applied", "render pass aborted", "mount=app"} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %q:\n%s", want, out)
		}
	}
}

func TestRendererHooksSkipFailedPasses(t *testing.T) {
	r, doc := newRenderer(t)
	var seqs []uint64
	r.AddHook(func(s dom.PassStats, _ []vdom.Change[msg]) { seqs = append(seqs, s.Seq) })

	render(t, r, vdom.Div[msg](vdom.P[msg]()))
	el, _ := doc.Find(0, 0)
	doc.Destroy(el)
	if err := r.Render(context.Background(), vdom.NewTree("app", vdom.Div[msg](vdom.P[msg](vdom.ID("x"))))); err == nil {
		t.Fatal("Render() should fail on a destroyed element")
	}

	if len(seqs) != 1 || seqs[0] != 1 {
		t.Errorf("hooks saw %v, want [1]", seqs)
	}

	// Reset reports the teardown as its own pass.
	r.Reset()
	render(t, r, vdom.Div[msg]())
	if len(seqs) != 3 || seqs[1] != 2 || seqs[2] != 3 {
		t.Errorf("hooks saw %v, want [1 2 3]", seqs)
	}
	if tree, seq := r.State(); seq != 3 || tree.Root == nil {
		t.Errorf("State() = %v, %d", tree, seq)
	}
}

func TestRunCounter(t *testing.T) {
	r, doc := newRenderer(t)
	inc := vdom.OnClick(func(vdom.Event) msg { return "inc" })

	count := 0
	view := func() *vdom.Tree[msg] {
		return vdom.NewTree("app", vdom.Div[msg](
			vdom.Button[msg](inc, "+"),
			vdom.Textf[msg]("%d", count),
		))
	}
	if err := r.Render(context.Background(), view()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- dom.Run(ctx, r, func(msgs []msg) *vdom.Tree[msg] {
			for _, m := range msgs {
				if m == "inc" {
					count++
				}
			}
			return view()
		})
	}()

	for i := 0; i < 3; i++ {
		if _, err := doc.DispatchPath(vdom.Path{0, 0}, vdom.Event{Kind: "click"}); err != nil {
			t.Fatal(err)
		}
	}

	want := fmt.Sprintf("<div><button on:click>+</button>%d</div>", 3)
	deadline := time.Now().Add(2 * time.Second)
	for doc.Dump() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Dump() = %s, want %s", doc.Dump(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

var (
	errSetAttribute = stderrors.New("set attribute refused")
	errRemove       = stderrors.New("remove refused")
	errInsert       = stderrors.New("insert refused")
	errDestroy      = stderrors.New("destroy refused")
)

// flakyDocument is a memdom document whose operations can be made to fail.
type flakyDocument struct {
	*memdom.Document
	failSet, failRemove, failInsert, failDestroy bool
}

func (d *flakyDocument) SetAttribute(el dom.Element, key, value string) error {
	if d.failSet {
		return errSetAttribute
	}
	return d.Document.SetAttribute(el, key, value)
}

func (d *flakyDocument) Remove(parent dom.Element, index int) error {
	if d.failRemove {
		return errRemove
	}
	return d.Document.Remove(parent, index)
}

func (d *flakyDocument) Insert(parent dom.Element, index int, child dom.Element) error {
	if d.failInsert {
		return errInsert
	}
	return d.Document.Insert(parent, index, child)
}

func (d *flakyDocument) Destroy(el dom.Element) error {
	if d.failDestroy {
		return errDestroy
	}
	return d.Document.Destroy(el)
}

func TestRunReturnsResetError(t *testing.T) {
	doc := &flakyDocument{Document: memdom.NewDocument()}
	r := dom.NewRenderer("app", doc, doc.Root(), vdom.NewMessages[msg]())
	render(t, r, vdom.Div[msg](vdom.ID("a")))

	doc.failSet, doc.failRemove = true, true
	done := make(chan error, 1)
	go func() {
		done <- dom.Run(context.Background(), r, func([]msg) *vdom.Tree[msg] {
			return vdom.NewTree("app", vdom.Div[msg](vdom.ID("b")))
		})
	}()
	r.Pool().Push("go")

	select {
	case err := <-done:
		if !stderrors.Is(err, errSetAttribute) {
			t.Errorf("Run() error = %v, want the render error", err)
		}
		if !stderrors.Is(err, errRemove) {
			t.Errorf("Run() error = %v, want the reset error joined", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after two failed passes")
	}
}

func TestDiscardLogsReleaseErrors(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	doc := &flakyDocument{Document: memdom.NewDocument(), failInsert: true, failDestroy: true}
	r := dom.NewRenderer("app", doc, doc.Root(), vdom.NewMessages[msg](), dom.WithLogger(logger))

	err := r.Render(context.Background(), vdom.NewTree("app", vdom.Div[msg]()))
	if !stderrors.Is(err, errInsert) {
		t.Fatalf("Render() error = %v, want insert error", err)
	}
	if out := logs.String(); !strings.Contains(out, "discard: destroy failed") || !strings.Contains(out, "mount=app") {
		t.Errorf("logs missing discard failure:\n%s", out)
	}
}

func TestRendererIgnoresNilOptions(t *testing.T) {
	doc := memdom.NewDocument()
	r := dom.NewRenderer("app", doc, doc.Root(), vdom.NewMessages[msg](),
		dom.WithLogger(nil),
		dom.WithTracer(nil),
	)
	render(t, r, vdom.Div[msg](vdom.ID("a")))
	if got := doc.Dump(); got != `<div id="a"></div>` {
		t.Errorf("Dump() = %s", got)
	}
}
