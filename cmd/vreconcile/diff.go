package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/memdom"
	"github.com/vango-dev/vreconcile/pkg/protocol"
	"github.com/vango-dev/vreconcile/pkg/treedoc"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Diff output formats.
const (
	formatText      = "text"
	formatJSONPatch = "json-patch"
	formatBinary    = "binary"
)

type diffOptions struct {
	format string
	dump   bool
	check  bool
}

func diffCmd(g *globals) *cobra.Command {
	var opts diffOptions

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Print the changes turning one tree document into another",
		Long: `Diff two tree documents mounted on the same container.

Formats:
  text        one change per line, colored by operation
  json-patch  RFC 6902 operations against the canonical OLD document
  binary      a Changes frame as sent to websocket observers

With --dump both documents are rendered on an in-memory backend and the
resulting markup is compared as text.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "output format (text, json-patch, binary)")
	cmd.Flags().BoolVar(&opts.dump, "dump", false, "compare rendered markup instead of printing changes")
	cmd.Flags().BoolVar(&opts.check, "check", false, "verify that the JSON Patch turns OLD into NEW")

	return cmd
}

func runDiff(ctx context.Context, out io.Writer, oldPath, newPath string, opts diffOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	prevDoc, err := treedoc.ReadFile(oldPath)
	if err != nil {
		return err
	}
	nextDoc, err := treedoc.ReadFile(newPath)
	if err != nil {
		return err
	}

	if opts.dump {
		return dumpDiff(ctx, out, prevDoc, nextDoc)
	}

	loader := treedoc.NewLoader()
	prev, err := loader.Tree(prevDoc)
	if err != nil {
		return err
	}
	next, err := loader.Tree(nextDoc)
	if err != nil {
		return err
	}

	changes, err := vdom.Diff(prev, next)
	if err != nil {
		return err
	}

	switch opts.format {
	case formatText:
		writeChanges(out, changes)
		return nil
	case formatJSONPatch:
		return writeJSONPatch(out, prevDoc, nextDoc, changes, opts.check)
	case formatBinary:
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return fmt.Errorf("refusing to write binary output to a terminal")
		}
		rec := protocol.NewRecord(1, prev.Mount, time.Now().UTC(), changes)
		return protocol.WriteFrame(out, protocol.NewFrame(protocol.FrameChanges, protocol.EncodeRecord(rec)))
	default:
		return errors.New("R401").WithDetailf("unknown diff format %q", opts.format).
			WithSuggestion("Use text, json-patch or binary.")
	}
}

// writeChanges prints one change per line and a tally.
func writeChanges(w io.Writer, changes []vdom.Change[treedoc.Message]) {
	if len(changes) == 0 {
		success(w, "no changes")
		return
	}
	for _, c := range changes {
		fmt.Fprintln(w, opLine(c.Op(), c.String()))
	}

	tally := vdom.Tally(changes)
	parts := make([]string, 0, len(tally))
	for k, n := range tally {
		parts = append(parts, fmt.Sprintf("%s %s: %d", k.Target, k.Op, n))
	}
	sort.Strings(parts)
	fmt.Fprintln(w, faint(fmt.Sprintf("%d changes (%s)", len(changes), strings.Join(parts, ", "))))
}

func writeJSONPatch(w io.Writer, prev, next *treedoc.Document, changes []vdom.Change[treedoc.Message], check bool) error {
	ops, err := treedoc.JSONPatch(prev, changes)
	if err != nil {
		return err
	}
	if ops == nil {
		ops = []treedoc.Operation{}
	}

	if check {
		patched, err := treedoc.ApplyPatch(prev, ops)
		if err != nil {
			return err
		}
		got, err := patched.MarshalCanonical()
		if err != nil {
			return err
		}
		want, err := next.MarshalCanonical()
		if err != nil {
			return err
		}
		if !bytes.Equal(got, want) {
			return fmt.Errorf("json patch check failed: patched document differs from %s", next.Mount)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ops)
}

// dumpDiff renders both documents on fresh in-memory backends and prints a
// character diff of their markup.
func dumpDiff(ctx context.Context, w io.Writer, prev, next *treedoc.Document) error {
	a, err := renderDump(ctx, prev)
	if err != nil {
		return err
	}
	b, err := renderDump(ctx, next)
	if err != nil {
		return err
	}
	if a == b {
		success(w, "markup identical")
		return nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(a, b, false))
	fmt.Fprintln(w, formatDiffs(diffs))
	return nil
}

func renderDump(ctx context.Context, d *treedoc.Document) (string, error) {
	// A loader per backend keeps each dump's listener handles separate.
	tree, err := treedoc.NewLoader().Tree(d)
	if err != nil {
		return "", err
	}
	doc := memdom.NewDocument()
	r := dom.NewRenderer(tree.Mount, doc, doc.Root(), vdom.NewMessages[treedoc.Message]())
	if err := r.Render(ctx, tree); err != nil {
		return "", err
	}
	return doc.Dump(), nil
}

// formatDiffs marks insertions as {+text+} and deletions as [-text-].
func formatDiffs(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString(green("{+" + d.Text + "+}"))
		case diffmatchpatch.DiffDelete:
			b.WriteString(red("[-" + d.Text + "-]"))
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
