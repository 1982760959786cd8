package memdom

import (
	"sort"
	"strings"

	"github.com/vango-dev/vreconcile/pkg/protocol"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Dump renders the container's children as markup. Attributes and
// classes are sorted and live listener kinds are listed as on:kind tokens,
// so two congruent documents always dump identically.
func (d *Document) Dump() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	for _, c := range d.root.children {
		dumpElement(&b, c)
	}
	return b.String()
}

func dumpElement(b *strings.Builder, e *Element) {
	if e.isText {
		b.WriteString(escapeText(e.text))
		return
	}
	writeOpen(b, e.tag, e.attrs, sortedSet(e.classes), e.listening())
	for _, c := range e.children {
		dumpElement(b, c)
	}
	writeClose(b, e.tag)
}

// Markup renders a virtual tree in the format of Dump. A document is
// congruent with a tree when d.Dump() == Markup(tree.Root).
func Markup[M any](v *vdom.VNode[M]) string {
	var b strings.Builder
	markupNode(&b, v)
	return b.String()
}

func markupNode[M any](b *strings.Builder, v *vdom.VNode[M]) {
	if v == nil {
		return
	}
	if v.IsText() {
		b.WriteString(escapeText(v.Text))
		return
	}
	kinds := make([]string, 0, len(v.Listeners))
	for _, l := range v.Listeners {
		kinds = append(kinds, l.Kind())
	}
	sort.Strings(kinds)
	writeOpen(b, v.Tag, v.Attrs, v.Classes.Names(), kinds)
	for _, c := range v.Children {
		markupNode(b, c)
	}
	writeClose(b, v.Tag)
}

// MarkupWire renders a wire tree, such as one rebuilt from recorded
// passes, in the format of Dump.
func MarkupWire(w *protocol.WireNode) string {
	var b strings.Builder
	markupWire(&b, w)
	return b.String()
}

func markupWire(b *strings.Builder, w *protocol.WireNode) {
	if w == nil {
		return
	}
	if w.Kind == vdom.KindText {
		b.WriteString(escapeText(w.Text))
		return
	}
	writeOpen(b, w.Tag, w.Attrs, w.Classes, w.Listeners)
	for _, c := range w.Children {
		markupWire(b, c)
	}
	writeClose(b, w.Tag)
}

func writeOpen(b *strings.Builder, tag string, attrs map[string]string, classes, kinds []string) {
	b.WriteByte('<')
	b.WriteString(tag)

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(attrs[k]))
		b.WriteByte('"')
	}
	if len(classes) > 0 {
		b.WriteString(` class="`)
		b.WriteString(escapeAttr(strings.Join(classes, " ")))
		b.WriteByte('"')
	}
	for _, k := range kinds {
		b.WriteString(" on:")
		b.WriteString(k)
	}
	b.WriteByte('>')
}

func writeClose(b *strings.Builder, tag string) {
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}

func sortedSet(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
