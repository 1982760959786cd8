package vdom

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Attributes maps attribute keys to values. Keys are unique; order is
// irrelevant.
type Attributes map[string]string

// Keys returns the attribute keys in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both maps hold the same key-value pairs.
// A nil map equals an empty one.
func (a Attributes) Equal(b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		if bv, ok := b[k]; !ok || av != bv {
			return false
		}
	}
	return true
}

// ClassSet is an unordered set of class names.
type ClassSet map[string]struct{}

// NewClassSet creates a set from names. Empty names are skipped.
func NewClassSet(names ...string) ClassSet {
	s := make(ClassSet, len(names))
	s.Add(names...)
	return s
}

// Add inserts names into the set. Each name may itself hold several
// space-separated classes.
func (s ClassSet) Add(names ...string) {
	for _, name := range names {
		for _, f := range strings.Fields(name) {
			s[f] = struct{}{}
		}
	}
}

// Remove deletes a class.
func (s ClassSet) Remove(name string) {
	delete(s, name)
}

// Toggle flips membership of a class.
func (s ClassSet) Toggle(name string) {
	if s.Has(name) {
		delete(s, name)
		return
	}
	s.Add(name)
}

// Has reports whether the class is present.
func (s ClassSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the classes in sorted order.
func (s ClassSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// String returns the sorted classes joined with spaces.
func (s ClassSet) String() string {
	return strings.Join(s.Names(), " ")
}

// Equal reports whether both sets hold the same classes.
func (s ClassSet) Equal(o ClassSet) bool {
	if len(s) != len(o) {
		return false
	}
	for n := range s {
		if !o.Has(n) {
			return false
		}
	}
	return true
}

// Attr is a single attribute argument for Tag.
type Attr struct {
	Key   string
	Value string
}

// ClassList is a class argument for Tag.
type ClassList []string

// attr creates an Attr with the given key and value.
func attr(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// A sets an arbitrary attribute.
func A(key, value string) Attr { return attr(key, value) }

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class adds classes to the element's class set.
func Class(names ...string) ClassList { return ClassList(names) }

// StyleAttr sets the style attribute.
func StyleAttr(style string) Attr { return attr("style", style) }

// Data creates a data-* attribute.
// Example: Data("id", "123") → data-id="123"
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Href sets the href attribute.
func Href(url string) Attr { return attr("href", url) }

// Type sets the type attribute.
func Type(t string) Attr { return attr("type", t) }

// Name sets the name attribute.
func Name(n string) Attr { return attr("name", n) }

// Value sets the value attribute.
func Value(v string) Attr { return attr("value", v) }

// Placeholder sets the placeholder attribute.
func Placeholder(p string) Attr { return attr("placeholder", p) }

// Title sets the title attribute.
func Title(t string) Attr { return attr("title", t) }

// Role sets the role attribute.
func Role(role string) Attr { return attr("role", role) }

// AriaLabel sets the aria-label attribute.
func AriaLabel(label string) Attr { return attr("aria-label", label) }

// Disabled sets the boolean disabled attribute. A false value yields an
// empty Attr, which Tag ignores.
func Disabled(disabled bool) Attr { return boolAttr("disabled", disabled) }

// Checked sets the boolean checked attribute.
func Checked(checked bool) Attr { return boolAttr("checked", checked) }

// Hidden sets the boolean hidden attribute.
func Hidden(hidden bool) Attr { return boolAttr("hidden", hidden) }

// TabIndex sets the tabindex attribute.
func TabIndex(i int) Attr { return attr("tabindex", strconv.Itoa(i)) }

func boolAttr(key string, on bool) Attr {
	if !on {
		return Attr{}
	}
	return attr(key, "")
}

func quote(s string) string {
	const max = 32
	if len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return strconv.Quote(s)
}
