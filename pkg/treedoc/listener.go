package treedoc

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Message is produced by document listeners.
type Message struct {
	Kind   string // Event kind that fired
	Source string // Expression that produced Value
	Value  any
	Err    error // Evaluation failure
}

func (m Message) String() string {
	if m.Err != nil {
		return fmt.Sprintf("%s: error: %v", m.Kind, m.Err)
	}
	return fmt.Sprintf("%s: %v", m.Kind, m.Value)
}

// env is the evaluation environment of a listener expression.
func env(kind, value string, detail map[string]any) map[string]any {
	if detail == nil {
		detail = map[string]any{}
	}
	return map[string]any{"kind": kind, "value": value, "detail": detail}
}

// Listener evaluates an expression for every event of its kind.
type Listener struct {
	kind   string
	source string
	prog   *vm.Program
	inner  vdom.Listener[Message]
}

// Compile builds a listener for kind from an expr-lang expression.
// Syntax and type errors fail with R402.
func Compile(kind, source string) (*Listener, error) {
	prog, err := expr.Compile(source, expr.Env(env("", "", nil)))
	if err != nil {
		return nil, errors.New("R402").WithDetailf("listener %s: compile %q", kind, source).Wrap(err)
	}
	l := &Listener{kind: kind, source: source, prog: prog}
	l.inner = vdom.On(kind, l.eval)
	return l, nil
}

// Kind implements vdom.Listener.
func (l *Listener) Kind() string {
	return l.kind
}

// Source returns the expression text.
func (l *Listener) Source() string {
	return l.source
}

// Attach implements vdom.Listener.
func (l *Listener) Attach(target vdom.EventTarget, pool *vdom.Messages[Message]) (*vdom.Handle, error) {
	return l.inner.Attach(target, pool)
}

func (l *Listener) eval(ev vdom.Event) Message {
	m := Message{Kind: l.kind, Source: l.source}
	m.Value, m.Err = expr.Run(l.prog, env(ev.Kind, ev.Value, ev.Detail))
	return m
}

// SourceOf returns the expression of a document listener, or "" for any
// other listener.
func SourceOf(l vdom.Listener[Message]) string {
	if dl, ok := l.(*Listener); ok {
		return dl.source
	}
	return ""
}
