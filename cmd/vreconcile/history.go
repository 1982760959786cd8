package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/memdom"
	"github.com/vango-dev/vreconcile/pkg/protocol"
	"github.com/vango-dev/vreconcile/pkg/snapshot"
)

func historyCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded render passes",
		Long: `Inspect the render passes recorded in the configured snapshot store
(snapshot.driver in vreconcile.json).`,
	}

	withStore := func(fn func(ctx context.Context, out io.Writer, store snapshot.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, err := openStore(g.cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("R401").WithDetail("no snapshot driver configured").
					WithSuggestion(`Set snapshot.driver to "bolt" or "s3".`)
			}
			defer store.Close()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return fn(ctx, cmd.OutOrStdout(), store, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list [MOUNT]",
			Short: "List recorded mounts, or the passes of one mount",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withStore(runHistoryList),
		},
		&cobra.Command{
			Use:   "show MOUNT [SEQ]",
			Short: "Show one pass and the tree it produced (default: latest)",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  withStore(runHistoryShow),
		},
	)
	return cmd
}

func runHistoryList(ctx context.Context, out io.Writer, store snapshot.Store, args []string) error {
	if len(args) == 0 {
		mounts, err := store.Mounts(ctx)
		if err != nil {
			return err
		}
		if len(mounts) == 0 {
			info(out, "no recorded mounts")
			return nil
		}
		for _, m := range mounts {
			seqs, err := store.List(ctx, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%d passes\n", m, len(seqs))
		}
		return nil
	}

	mount := args[0]
	seqs, err := store.List(ctx, mount)
	if err != nil {
		return err
	}
	if len(seqs) == 0 {
		return errors.New("R404").WithDetailf("no records for mount %q", mount)
	}
	for _, seq := range seqs {
		rec, err := store.Get(ctx, mount, seq)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%s\t%d changes\n", rec.Seq, rec.Time.Format("2006-01-02T15:04:05.000Z07:00"), len(rec.Changes))
	}
	return nil
}

func runHistoryShow(ctx context.Context, out io.Writer, store snapshot.Store, args []string) error {
	mount := args[0]
	var upto uint64
	if len(args) == 2 {
		n, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil || n == 0 {
			return errors.New("R401").WithDetailf("bad pass sequence %q", args[1])
		}
		upto = n
	}

	root, seq, err := snapshot.Replay(ctx, store, mount, upto)
	if err != nil {
		return err
	}
	rec, err := store.Get(ctx, mount, seq)
	if err != nil {
		return err
	}

	info(out, "%s %s", faint(fmt.Sprintf("pass %d", rec.Seq)), rec.Time.Format("2006-01-02T15:04:05.000Z07:00"))
	writeWireChanges(out, rec.Changes)
	fmt.Fprintln(out, memdom.MarkupWire(root))
	return nil
}

func writeWireChanges(w io.Writer, changes []protocol.WireChange) {
	for _, c := range changes {
		fmt.Fprintln(w, opLine(c.Op, c.String()))
	}
}
