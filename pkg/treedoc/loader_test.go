package treedoc

import (
	"strings"
	"testing"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/memdom"
	"github.com/vango-dev/vreconcile/pkg/vdom"
	"github.com/vango-dev/vreconcile/pkg/vtest"
)

func mustParse(t *testing.T, doc string) *Document {
	t.Helper()
	d, err := Parse([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return d
}

func TestLoaderBuildsTree(t *testing.T) {
	l := NewLoader()
	tree, err := l.Tree(mustParse(t, counterJSON))
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}

	if got := memdom.Markup(tree.Root); got != `<div id="main" class="box card"><button on:click>+</button>0</div>` {
		t.Errorf("Markup() = %s", got)
	}
	if l.Listeners() != 1 {
		t.Errorf("Listeners() = %d, want 1", l.Listeners())
	}
}

func TestLoaderKeepsListenerIdentity(t *testing.T) {
	l := NewLoader()
	first, err := l.Tree(mustParse(t, counterJSON))
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.Tree(mustParse(t, counterJSON))
	if err != nil {
		t.Fatal(err)
	}

	changes, err := vdom.Diff(first, second)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 0 {
		t.Errorf("Diff(load, reload) = %v, want empty", vdom.Strings(changes))
	}

	edited := mustParse(t, counterJSON)
	edited.Root.Children[0].On["click"] = `"dec"`
	third, err := l.Tree(edited)
	if err != nil {
		t.Fatal(err)
	}
	changes, err = vdom.Diff(second, third)
	if err != nil {
		t.Fatal(err)
	}
	if got := vdom.Strings(changes); len(got) != 1 || got[0] != "[0 0] listener replace click" {
		t.Errorf("Diff() = %v, want one listener replace", got)
	}
}

func TestLoaderRejectsBadExpression(t *testing.T) {
	doc := mustParse(t, `{"mount": "a", "root": {"tag": "div", "on": {"click": "value +"}}}`)
	if _, err := NewLoader().Tree(doc); errors.CodeOf(err) != "R402" {
		t.Errorf("Tree() error = %v, want R402", err)
	}
}

func TestListenerEvaluatesAgainstEvent(t *testing.T) {
	doc := mustParse(t, `{
	  "mount": "form",
	  "root": {"tag": "input", "on": {
	    "input": "upper(value)",
	    "keydown": "detail.key == 'Enter' ? 'submit' : kind",
	    "change": "detail.items[5]"
	  }}
	}`)

	tree, err := NewLoader().Tree(doc)
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}

	h := vtest.New[Message](t, "form")
	h.RenderTree(tree)

	at := vdom.Path{0}
	fire := func(ev vdom.Event) {
		t.Helper()
		if n := h.FireEvent(at, ev); n != 1 {
			t.Fatalf("FireEvent(%s) = %d, want 1", ev.Kind, n)
		}
	}
	fire(vdom.Event{Kind: "input", Value: "abc"})
	fire(vdom.Event{Kind: "keydown", Detail: map[string]any{"key": "Enter"}})
	fire(vdom.Event{Kind: "keydown", Detail: map[string]any{"key": "a"}})
	fire(vdom.Event{Kind: "change", Detail: map[string]any{"items": []any{"x"}}})

	got := h.Messages()
	if len(got) != 4 {
		t.Fatalf("Drain() = %v, want 4 messages", got)
	}
	if got[0].Value != "ABC" || got[0].Source != "upper(value)" {
		t.Errorf("input message = %+v", got[0])
	}
	if got[1].Value != "submit" || got[2].Value != "keydown" {
		t.Errorf("keydown messages = %v, %v", got[1], got[2])
	}
	if got[3].Err == nil {
		t.Errorf("change message = %+v, want evaluation error", got[3])
	}
	if !strings.HasPrefix(got[3].String(), "change: error: ") {
		t.Errorf("String() = %q", got[3].String())
	}
}

func TestFromVNode(t *testing.T) {
	doc := mustParse(t, counterJSON)
	tree, err := NewLoader().Tree(doc)
	if err != nil {
		t.Fatal(err)
	}

	back := &Document{Mount: "app", Root: FromVNode(tree.Root)}
	a, _ := back.MarshalCanonical()
	b, _ := doc.MarshalCanonical()
	if string(a) != string(b) {
		t.Errorf("FromVNode() = %s, want %s", a, b)
	}
}
