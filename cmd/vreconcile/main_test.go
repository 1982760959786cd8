package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vreconcile/internal/config"
	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/protocol"
	"github.com/vango-dev/vreconcile/pkg/treedoc"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const (
	oldDoc = `{"mount": "app", "root": {"tag": "div", "attrs": {"id": "a"}, "children": [
	  {"tag": "button", "on": {"click": "\"inc:\" + value"}, "children": [{"text": "+"}]}
	]}}`
	newDoc = `{"mount": "app", "root": {"tag": "div", "attrs": {"id": "b"}, "classes": ["on"], "children": [
	  {"tag": "button", "on": {"click": "\"inc:\" + value"}, "children": [{"text": "+"}]},
	  {"tag": "p"}
	]}}`
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testGlobals(t *testing.T) *globals {
	t.Helper()
	cfg := config.New()
	cfg.Snapshot.Driver = config.DriverBolt
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "history.db")
	return &globals{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestParseFire(t *testing.T) {
	tests := []struct {
		in      string
		want    fireSpec
		wantErr bool
	}{
		{in: "0:click", want: fireSpec{path: vdom.Path{0}, kind: "click"}},
		{in: "0.2.1:input=hello", want: fireSpec{path: vdom.Path{0, 2, 1}, kind: "input", value: "hello"}},
		{in: "0:input=a=b", want: fireSpec{path: vdom.Path{0}, kind: "input", value: "a=b"}},
		{in: "click", wantErr: true},
		{in: ":click", wantErr: true},
		{in: "0:", wantErr: true},
		{in: "0.x:click", wantErr: true},
		{in: "-1:click", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFire(tt.in)
			if tt.wantErr {
				if errors.CodeOf(err) != "R401" {
					t.Errorf("parseFire() error = %v, want R401", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFire() error = %v", err)
			}
			if !got.path.Equal(tt.want.path) || got.kind != tt.want.kind || got.value != tt.want.value {
				t.Errorf("parseFire() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDiffText(t *testing.T) {
	var out bytes.Buffer
	err := runDiff(context.Background(), &out, writeDoc(t, "old.json", oldDoc), writeDoc(t, "new.json", newDoc), diffOptions{format: formatText})
	if err != nil {
		t.Fatalf("runDiff() error = %v", err)
	}

	want := strings.Join([]string{
		`~ [0] attr replace id="b"`,
		`+ [0] class add on`,
		`+ [0] child add 1 <p>`,
		`3 changes (attr replace: 1, child add: 1, class add: 1)`,
	}, "\n") + "\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffNoChanges(t *testing.T) {
	var out bytes.Buffer
	path := writeDoc(t, "old.json", oldDoc)
	if err := runDiff(context.Background(), &out, path, path, diffOptions{format: formatText}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "no changes") {
		t.Errorf("output = %q, want no changes", out.String())
	}
}

func TestDiffJSONPatch(t *testing.T) {
	var out bytes.Buffer
	err := runDiff(context.Background(), &out, writeDoc(t, "old.json", oldDoc), writeDoc(t, "new.json", newDoc),
		diffOptions{format: formatJSONPatch, check: true})
	if err != nil {
		t.Fatalf("runDiff() error = %v", err)
	}

	var ops []treedoc.Operation
	if err := json.Unmarshal(out.Bytes(), &ops); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	var paths []string
	for _, op := range ops {
		paths = append(paths, op.Op+" "+op.Path)
	}
	want := []string{
		"replace /root/attrs/id",
		"add /root/classes",
		"add /root/children/1",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffBinary(t *testing.T) {
	var out bytes.Buffer
	err := runDiff(context.Background(), &out, writeDoc(t, "old.json", oldDoc), writeDoc(t, "new.json", newDoc), diffOptions{format: formatBinary})
	if err != nil {
		t.Fatalf("runDiff() error = %v", err)
	}

	frame, err := protocol.ReadFrame(&out)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if frame.Type != protocol.FrameChanges {
		t.Fatalf("frame type = %v, want Changes", frame.Type)
	}
	rec, err := protocol.DecodeRecord(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Mount != "app" || len(rec.Changes) != 3 {
		t.Errorf("record = %s with %d changes, want app with 3", rec.Mount, len(rec.Changes))
	}
}

func TestDiffDump(t *testing.T) {
	var out bytes.Buffer
	err := runDiff(context.Background(), &out, writeDoc(t, "old.json", oldDoc), writeDoc(t, "new.json", newDoc), diffOptions{dump: true})
	if err != nil {
		t.Fatalf("runDiff() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{`<div id="`, "[-", "-]", "{+", "+}", "</button>"} {
		if !strings.Contains(got, want) {
			t.Errorf("dump diff %q does not contain %q", got, want)
		}
	}
}

func TestDiffDumpIdentical(t *testing.T) {
	var out bytes.Buffer
	path := writeDoc(t, "old.json", oldDoc)
	if err := runDiff(context.Background(), &out, path, path, diffOptions{dump: true}); err != nil {
		t.Fatalf("runDiff() error = %v", err)
	}
	if !strings.Contains(out.String(), "markup identical") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDiffErrors(t *testing.T) {
	old := writeDoc(t, "old.json", oldDoc)
	other := writeDoc(t, "other.json", `{"mount": "other", "root": {"tag": "div"}}`)

	tests := []struct {
		name string
		a, b string
		opts diffOptions
		code string
	}{
		{"unknown format", old, old, diffOptions{format: "xml"}, "R401"},
		{"different mounts", old, other, diffOptions{format: formatText}, "R201"},
		{"missing file", old, filepath.Join(t.TempDir(), "nope.json"), diffOptions{format: formatText}, "R402"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runDiff(context.Background(), io.Discard, tt.a, tt.b, tt.opts)
			if errors.CodeOf(err) != tt.code {
				t.Errorf("runDiff() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestApplyRecordsAndHistory(t *testing.T) {
	g := testGlobals(t)
	store, err := openStore(g.cfg)
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer store.Close()

	var out bytes.Buffer
	paths := []string{writeDoc(t, "old.json", oldDoc), writeDoc(t, "new.json", newDoc)}
	err = runApply(context.Background(), &out, g, store, paths, applyOptions{fires: []string{"0.0:click=5", "0.1:click"}})
	if err != nil {
		t.Fatalf("runApply() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		`~ [0] attr replace id="b"`,
		`<div id="b" class="on"><button on:click>+</button><p></p></div>`,
		`click: inc:5`,
		`[0 1]: no click listener`,
		`recorded 2 passes of app`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("apply output does not contain %q:\n%s", want, got)
		}
	}

	ctx := context.Background()
	seqs, err := store.List(ctx, "app")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{1, 2}, seqs); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	out.Reset()
	if err := runHistoryShow(ctx, &out, store, []string{"app", "1"}); err != nil {
		t.Fatalf("history show error = %v", err)
	}
	if !strings.Contains(out.String(), `<div id="a"><button on:click>+</button></div>`) {
		t.Errorf("history show 1 = %s", out.String())
	}

	out.Reset()
	if err := runHistoryShow(ctx, &out, store, []string{"app"}); err != nil {
		t.Fatalf("history show error = %v", err)
	}
	if !strings.Contains(out.String(), `pass 2`) || !strings.Contains(out.String(), `+ [0] child add 1 <p>`) {
		t.Errorf("history show latest = %s", out.String())
	}

	out.Reset()
	if err := runHistoryList(ctx, &out, store, nil); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "app\t2 passes\n" {
		t.Errorf("history list = %q", got)
	}

	if err := runHistoryShow(ctx, io.Discard, store, []string{"app", "7"}); errors.CodeOf(err) != "R404" {
		t.Errorf("history show 7 error = %v, want R404", err)
	}
	if err := runHistoryShow(ctx, io.Discard, store, []string{"app", "x"}); errors.CodeOf(err) != "R401" {
		t.Errorf("history show x error = %v, want R401", err)
	}
}

func TestApplyRejectsMountChange(t *testing.T) {
	g := testGlobals(t)
	paths := []string{writeDoc(t, "a.json", oldDoc), writeDoc(t, "b.json", `{"mount": "other", "root": {"tag": "div"}}`)}
	if err := runApply(context.Background(), io.Discard, g, nil, paths, applyOptions{}); errors.CodeOf(err) != "R201" {
		t.Errorf("runApply() error = %v, want R201", err)
	}
}

func TestApplyPretty(t *testing.T) {
	g := testGlobals(t)
	var out bytes.Buffer
	paths := []string{writeDoc(t, "doc.json", newDoc)}
	if err := runApply(context.Background(), &out, g, nil, paths, applyOptions{quiet: true, pretty: true}); err != nil {
		t.Fatalf("runApply() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("pretty markup should span several lines, got:\n%s", out.String())
	}
	if !strings.HasPrefix(lines[0], "<div") || !strings.Contains(lines[0], `id="b"`) {
		t.Errorf("first line = %q, want the opening div", lines[0])
	}
	if got := strings.TrimSpace(lines[len(lines)-1]); got != "</div>" {
		t.Errorf("last line = %q, want </div>", got)
	}
}

func TestServerUpdate(t *testing.T) {
	path := writeDoc(t, "doc.json", oldDoc)
	doc, err := treedoc.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := &server{path: path, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), loader: treedoc.NewLoader(), doc: doc}

	first := s.update(nil)
	if err := os.WriteFile(path, []byte(newDoc), 0644); err != nil {
		t.Fatal(err)
	}
	second := s.update([]treedoc.Message{{Kind: "click", Source: `"x"`, Value: "x"}})
	changes, err := vdom.Diff(first, second)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 0 {
		t.Errorf("update without reload changed the tree: %v", vdom.Strings(changes))
	}

	third := s.update([]treedoc.Message{{Kind: reloadKind, Value: path}})
	changes, err = vdom.Diff(second, third)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 3 {
		t.Errorf("update after reload = %v, want 3 changes", vdom.Strings(changes))
	}

	if err := os.WriteFile(path, []byte(`{"mount": "other", "root": {"tag": "div"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	fourth := s.update([]treedoc.Message{{Kind: reloadKind, Value: path}})
	if fourth.Mount != "app" {
		t.Errorf("reload switched mount to %s", fourth.Mount)
	}
}

func TestServerWatchPushesReload(t *testing.T) {
	path := writeDoc(t, "doc.json", oldDoc)
	other := filepath.Join(filepath.Dir(path), "other.json")
	s := &server{path: path, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	w, err := watchDocument(path)
	if err != nil {
		t.Fatalf("watchDocument() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := vdom.NewMessages[treedoc.Message]()
	go s.watch(ctx, w, pool, 100*time.Millisecond)

	// Changes to a neighbouring file are ignored.
	if err := os.WriteFile(other, []byte(newDoc), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-pool.Ready():
		t.Fatalf("reload pushed for another file: %v", pool.Drain())
	case <-time.After(300 * time.Millisecond):
	}

	// A burst of writes collapses into one reload.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(newDoc), 0644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-pool.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after writing the document")
	}
	time.Sleep(300 * time.Millisecond)
	got := pool.Drain()
	if len(got) != 1 || got[0].Kind != reloadKind || got[0].Value != path {
		t.Errorf("Drain() = %v, want one reload of %s", got, path)
	}
}

func TestWatchDocumentMissingDir(t *testing.T) {
	_, err := watchDocument(filepath.Join(t.TempDir(), "missing", "doc.json"))
	if errors.CodeOf(err) != "R405" {
		t.Errorf("watchDocument() error = %v, want R405", err)
	}
}

func TestOriginChecker(t *testing.T) {
	if originChecker(nil) != nil {
		t.Error("originChecker(nil) should defer to the same-origin default")
	}

	check := originChecker([]string{"https://ok.example"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://ok.example", true},
		{"http://example.com", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://example.com/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := check(r); got != tt.want {
				t.Errorf("check(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}

	if !originChecker([]string{"*"})(httptest.NewRequest("GET", "http://a/ws", nil)) {
		t.Error("* should allow any origin")
	}
}

func TestVersionShort(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"version", "--short", "--config", writeDoc(t, "vreconcile.json", `{}`)})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); got != version+"\n" {
		t.Errorf("version --short = %q", got)
	}
}
