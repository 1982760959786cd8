package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yosssi/gohtml"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/memdom"
	"github.com/vango-dev/vreconcile/pkg/snapshot"
	"github.com/vango-dev/vreconcile/pkg/treedoc"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// fireSpec is one event given with --fire.
type fireSpec struct {
	path  vdom.Path
	kind  string
	value string
}

// parseFire parses PATH:KIND[=VALUE], where PATH is a dot separated list
// of child indexes starting at the root element (e.g. 0.1).
func parseFire(s string) (fireSpec, error) {
	pathPart, rest, ok := strings.Cut(s, ":")
	if !ok || pathPart == "" || rest == "" {
		return fireSpec{}, errors.New("R401").WithDetailf("--fire %q: want PATH:KIND[=VALUE]", s)
	}
	var f fireSpec
	for _, part := range strings.Split(pathPart, ".") {
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 {
			return fireSpec{}, errors.New("R401").WithDetailf("--fire %q: bad index %q", s, part)
		}
		f.path = append(f.path, i)
	}
	f.kind, f.value, _ = strings.Cut(rest, "=")
	return f, nil
}

type applyOptions struct {
	fires  []string
	quiet  bool
	pretty bool
}

func applyCmd(g *globals) *cobra.Command {
	var opts applyOptions

	cmd := &cobra.Command{
		Use:   "apply DOC...",
		Short: "Render documents in sequence on an in-memory backend",
		Long: `Render each document in turn on one in-memory backend, printing the
changes of every pass, then fire the --fire events and print the
messages their listeners produced.

When a snapshot driver is configured every pass is recorded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(g.cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			return runApply(cmd.Context(), cmd.OutOrStdout(), g, store, args, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.fires, "fire", nil, "fire an event after the last pass (PATH:KIND[=VALUE], repeatable)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "print only the final markup and messages")
	cmd.Flags().BoolVarP(&opts.pretty, "pretty", "p", false, "indent the final markup")

	return cmd
}

func runApply(ctx context.Context, out io.Writer, g *globals, store snapshot.Store, paths []string, opts applyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fires := make([]fireSpec, 0, len(opts.fires))
	for _, s := range opts.fires {
		f, err := parseFire(s)
		if err != nil {
			return err
		}
		fires = append(fires, f)
	}

	docs := make([]*treedoc.Document, 0, len(paths))
	for _, p := range paths {
		d, err := treedoc.ReadFile(p)
		if err != nil {
			return err
		}
		docs = append(docs, d)
	}

	backend := memdom.NewDocument()
	r := dom.NewRenderer(docs[0].Mount, backend, backend.Root(), vdom.NewMessages[treedoc.Message](),
		dom.WithLogger(g.logger))
	if store != nil {
		r.AddHook(snapshot.Recorder[treedoc.Message](store, g.logger))
	}

	var pending []vdom.Change[treedoc.Message]
	r.AddHook(func(_ dom.PassStats, changes []vdom.Change[treedoc.Message]) {
		pending = changes
	})

	loader := treedoc.NewLoader()
	for i, d := range docs {
		tree, err := loader.Tree(d)
		if err != nil {
			return err
		}
		pending = nil
		if err := r.Render(ctx, tree); err != nil {
			return err
		}
		if !opts.quiet {
			info(out, "%s %s", faint(fmt.Sprintf("pass %d", r.Seq())), paths[i])
			writeChanges(out, pending)
		}
	}

	for _, f := range fires {
		n, err := backend.DispatchPath(f.path, vdom.Event{Kind: f.kind, Value: f.value})
		if err != nil {
			return err
		}
		if n == 0 {
			warn(out, "%v: no %s listener", f.path, f.kind)
		}
	}

	markup := backend.Dump()
	if opts.pretty {
		markup = gohtml.Format(markup)
	}
	fmt.Fprintln(out, markup)
	for _, m := range r.Pool().Drain() {
		fmt.Fprintln(out, m)
	}
	if store != nil {
		success(out, "recorded %d passes of %s", r.Seq(), r.ID())
	}
	return nil
}
