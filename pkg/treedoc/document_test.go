package treedoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vango-dev/vreconcile/internal/errors"
)

const counterJSON = `{
  "mount": "app",
  "root": {
    "tag": "div",
    "attrs": {"id": "main"},
    "classes": ["card", "box"],
    "children": [
      {"tag": "button", "on": {"click": "\"inc\""}, "children": [{"text": "+"}]},
      {"text": "0"}
    ]
  }
}`

const counterYAML = `mount: app
root:
  tag: div
  attrs:
    id: main
  classes: [box, card]
  children:
    - tag: button
      on:
        click: '"inc"'
      children:
        - text: "+"
    - text: "0"
`

func TestParseJSONAndYAMLAgree(t *testing.T) {
	fromJSON, err := Parse([]byte(counterJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Parse(json) error = %v", err)
	}
	fromYAML, err := Parse([]byte(counterYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse(yaml) error = %v", err)
	}

	a, err := fromJSON.MarshalCanonical()
	if err != nil {
		t.Fatal(err)
	}
	b, err := fromYAML.MarshalCanonical()
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("canonical forms differ:\njson: %s\nyaml: %s", a, b)
	}
	if got := fromJSON.Canonical().Root.Classes; got[0] != "box" || got[1] != "card" {
		t.Errorf("canonical classes = %v, want sorted", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"no mount", `{"root": {"tag": "div"}}`, "R402"},
		{"unknown field", `{"mount": "a", "root": {"tag": "div", "style": "x"}}`, "R402"},
		{"neither tag nor text", `{"mount": "a", "root": {"attrs": {"id": "x"}}}`, "R402"},
		{"text with children", `{"mount": "a", "root": {"text": "x", "children": [{"text": "y"}]}}`, "R402"},
		{"duplicate class", `{"mount": "a", "root": {"tag": "div", "classes": ["a", "a"]}}`, "R104"},
		{"class with space", `{"mount": "a", "root": {"tag": "div", "classes": ["a b"]}}`, "R402"},
		{"empty listener", `{"mount": "a", "root": {"tag": "div", "on": {"click": " "}}}`, "R402"},
		{"null child", `{"mount": "a", "root": {"tag": "div", "children": [null]}}`, "R402"},
		{"malformed", `{"mount": `, "R402"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			if got := errors.CodeOf(err); got != tt.code {
				t.Errorf("Parse() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counter.yml")
	if err := os.WriteFile(path, []byte(counterYAML), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if doc.Mount != "app" || doc.Root.Tag != "div" {
		t.Errorf("ReadFile() = %+v", doc)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.json")); errors.CodeOf(err) != "R402" {
		t.Errorf("ReadFile(missing) error = %v, want R402", err)
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.json", FormatJSON},
		{"a.yaml", FormatYAML},
		{"a.YML", FormatYAML},
		{"a", FormatJSON},
	}
	for _, tt := range tests {
		if got := FormatOf(tt.path); got != tt.want {
			t.Errorf("FormatOf(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
