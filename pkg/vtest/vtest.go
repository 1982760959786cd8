package vtest

import (
	"context"
	"strings"
	"testing"

	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/memdom"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Harness renders trees of message type M on an in-memory document.
type Harness[M any] struct {
	t        testing.TB
	mount    string
	Doc      *memdom.Document
	Renderer *dom.Renderer[M]
}

// New creates a harness for mount. opts are passed to dom.NewRenderer.
func New[M any](t testing.TB, mount string, opts ...dom.Option) *Harness[M] {
	doc := memdom.NewDocument()
	return &Harness[M]{
		t:        t,
		mount:    mount,
		Doc:      doc,
		Renderer: dom.NewRenderer(mount, doc, doc.Root(), vdom.NewMessages[M](), opts...),
	}
}

// Render renders root and verifies the result.
func (h *Harness[M]) Render(root *vdom.VNode[M]) {
	h.t.Helper()
	h.RenderTree(vdom.NewTree(h.mount, root))
}

// RenderTree renders tree and verifies the result.
func (h *Harness[M]) RenderTree(tree *vdom.Tree[M]) {
	h.t.Helper()
	if err := h.Renderer.Render(context.Background(), tree); err != nil {
		h.t.Fatalf("Render() error = %v", err)
	}
	h.ExpectConsistent()
}

// ExpectConsistent checks that the document matches the current tree and
// that the live listener handles match the tree's listeners.
func (h *Harness[M]) ExpectConsistent() {
	h.t.Helper()
	root := h.Renderer.Current().Root
	if got, want := h.Doc.Dump(), memdom.Markup(root); got != want {
		h.t.Errorf("document = %s, want %s", got, want)
	}
	want := vdom.CountListeners(root)
	if got := h.Renderer.LiveHandles(); got != want {
		h.t.Errorf("LiveHandles() = %d, want %d", got, want)
	}
	if got := h.Doc.ListenerCount(); got != want {
		h.t.Errorf("document listeners = %d, want %d", got, want)
	}
}

// ExpectMarkup checks the document markup.
func (h *Harness[M]) ExpectMarkup(want string) {
	h.t.Helper()
	if got := h.Doc.Dump(); got != want {
		h.t.Errorf("markup = %s, want %s", got, want)
	}
}

// Fire dispatches an event on the element at path and returns the number
// of callbacks invoked.
func (h *Harness[M]) Fire(path vdom.Path, kind, value string) int {
	h.t.Helper()
	return h.FireEvent(path, vdom.Event{Kind: kind, Value: value})
}

// FireEvent dispatches ev on the element at path.
func (h *Harness[M]) FireEvent(path vdom.Path, ev vdom.Event) int {
	h.t.Helper()
	n, err := h.Doc.DispatchPath(path, ev)
	if err != nil {
		h.t.Fatalf("DispatchPath(%s, %s) error = %v", path, ev.Kind, err)
	}
	return n
}

// Messages drains the messages produced since the last call.
func (h *Harness[M]) Messages() []M {
	return h.Renderer.Pool().Drain()
}

// ExpectContains asserts that the markup of node contains expected.
func ExpectContains[M any](t testing.TB, node *vdom.VNode[M], expected string) {
	t.Helper()
	html := memdom.Markup(node)
	if !strings.Contains(html, expected) {
		t.Errorf("expected markup to contain %q, got:\n%s", expected, truncate(html, 500))
	}
}

// ExpectNotContains asserts that the markup of node does not contain
// unexpected.
func ExpectNotContains[M any](t testing.TB, node *vdom.VNode[M], unexpected string) {
	t.Helper()
	html := memdom.Markup(node)
	if strings.Contains(html, unexpected) {
		t.Errorf("expected markup to NOT contain %q, got:\n%s", unexpected, truncate(html, 500))
	}
}

// ExpectElement asserts that the markup of node contains a tag.
func ExpectElement[M any](t testing.TB, node *vdom.VNode[M], tag string) {
	t.Helper()
	html := memdom.Markup(node)
	if !strings.Contains(html, "<"+tag+">") && !strings.Contains(html, "<"+tag+" ") {
		t.Errorf("expected markup to contain <%s> element, got:\n%s", tag, truncate(html, 500))
	}
}

// ExpectAttribute asserts that the markup of node contains an attribute
// value. Classes are matched against the sorted class attribute.
func ExpectAttribute[M any](t testing.TB, node *vdom.VNode[M], attr, value string) {
	t.Helper()
	html := memdom.Markup(node)
	needle := attr + `="` + value + `"`
	if !strings.Contains(html, needle) {
		t.Errorf("expected attribute %s=%q not found, got:\n%s", attr, value, truncate(html, 500))
	}
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
