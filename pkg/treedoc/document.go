package treedoc

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension; anything other than
// .yaml or .yml is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Document is one tree of a mount.
type Document struct {
	Mount string `json:"mount" yaml:"mount"`
	Root  *Node  `json:"root,omitempty" yaml:"root,omitempty"`
}

// Node is an element (Tag set) or a text node (Text set).
type Node struct {
	Tag      string            `json:"tag,omitempty" yaml:"tag,omitempty"`
	Text     *string           `json:"text,omitempty" yaml:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Classes  []string          `json:"classes,omitempty" yaml:"classes,omitempty"`
	On       map[string]string `json:"on,omitempty" yaml:"on,omitempty"`
	Children []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
}

// TextNode returns a text node.
func TextNode(s string) *Node {
	return &Node{Text: &s}
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool {
	return n.Text != nil
}

// Parse decodes and validates a document.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	default:
		return nil, errors.New("R402").WithDetailf("unknown format %q", format)
	}
	if err != nil {
		return nil, errors.New("R402").WithDetailf("decode %s document", format).Wrap(err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReadFile reads and parses a document, choosing the format by extension.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("R402").WithDetailf("read %s", path).Wrap(err)
	}
	return Parse(data, FormatOf(path))
}

// Validate checks the document shape. Duplicate classes fail with R104;
// every other problem is R402.
func (d *Document) Validate() error {
	if d.Mount == "" {
		return errors.New("R402").WithDetail("document has no mount")
	}
	if d.Root == nil {
		return nil
	}
	return d.Root.validate(vdom.Path{0})
}

func (n *Node) validate(path vdom.Path) error {
	if n == nil {
		return errors.New("R402").WithDetailf("null node at %s", path)
	}
	if n.IsText() {
		if n.Tag != "" || len(n.Attrs) > 0 || len(n.Classes) > 0 || len(n.On) > 0 || len(n.Children) > 0 {
			return errors.New("R402").WithDetailf("text node at %s has element fields", path)
		}
		return nil
	}
	if n.Tag == "" {
		return errors.New("R402").WithDetailf("node at %s has neither tag nor text", path)
	}

	seen := make(map[string]struct{}, len(n.Classes))
	for _, c := range n.Classes {
		if c == "" || strings.ContainsAny(c, " \t\n") {
			return errors.New("R402").WithDetailf("invalid class %q at %s", c, path)
		}
		if _, dup := seen[c]; dup {
			return errors.New("R104").WithDetailf("class %q repeated at %s", c, path)
		}
		seen[c] = struct{}{}
	}
	for kind, src := range n.On {
		if kind == "" || strings.TrimSpace(src) == "" {
			return errors.New("R402").WithDetailf("empty listener %q at %s", kind, path)
		}
	}
	for i, c := range n.Children {
		if err := c.validate(path.Child(i)); err != nil {
			return err
		}
	}
	return nil
}

// Canonical returns a deep copy with sorted classes and empty collections
// dropped.
func (d *Document) Canonical() *Document {
	return &Document{Mount: d.Mount, Root: d.Root.clone()}
}

func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	if n.IsText() {
		return TextNode(*n.Text)
	}
	c := &Node{Tag: n.Tag}
	if len(n.Attrs) > 0 {
		c.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			c.Attrs[k] = v
		}
	}
	if len(n.Classes) > 0 {
		c.Classes = append([]string(nil), n.Classes...)
		sort.Strings(c.Classes)
	}
	if len(n.On) > 0 {
		c.On = make(map[string]string, len(n.On))
		for k, v := range n.On {
			c.On[k] = v
		}
	}
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.clone())
	}
	return c
}

// MarshalCanonical encodes the canonical form as JSON. Equal trees encode
// to equal bytes.
func (d *Document) MarshalCanonical() ([]byte, error) {
	return json.Marshal(d.Canonical())
}

// EncodeYAML encodes the canonical form as YAML.
func (d *Document) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(d.Canonical())
}
