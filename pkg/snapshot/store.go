package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/dom"
	"github.com/vango-dev/vreconcile/pkg/protocol"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// ErrNotFound is returned when no record exists for a mount and sequence.
var ErrNotFound = errors.New("R404")

// Store persists pass records.
type Store interface {
	// Put stores a record, replacing any record with the same mount and seq.
	Put(ctx context.Context, rec *protocol.PassRecord) error

	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, mount string, seq uint64) (*protocol.PassRecord, error)

	// List returns the stored sequence numbers of mount in ascending order.
	List(ctx context.Context, mount string) ([]uint64, error)

	// Mounts returns the mounts with at least one record, sorted.
	Mounts(ctx context.Context) ([]string, error)

	Close() error
}

// DefaultPutTimeout bounds a single Put issued by Recorder.
const DefaultPutTimeout = 5 * time.Second

// Recorder returns a renderer hook that stores every applied pass.
// Failures are logged; they never fail the pass.
func Recorder[M any](store Store, logger *slog.Logger) dom.PassHook[M] {
	if logger == nil {
		logger = slog.Default().With("component", "snapshot")
	}
	return func(stats dom.PassStats, changes []vdom.Change[M]) {
		rec := protocol.NewRecord(stats.Seq, stats.Mount, time.Now().UTC(), changes)

		ctx, cancel := context.WithTimeout(context.Background(), DefaultPutTimeout)
		defer cancel()
		if err := store.Put(ctx, rec); err != nil {
			logger.Error("record pass failed",
				"mount", stats.Mount,
				"seq", stats.Seq,
				"error", err)
		}
	}
}

// Replay rebuilds the tree of mount after pass upto (0 means the latest)
// by applying its records in order.
func Replay(ctx context.Context, store Store, mount string, upto uint64) (*protocol.WireNode, uint64, error) {
	seqs, err := store.List(ctx, mount)
	if err != nil {
		return nil, 0, err
	}
	if len(seqs) == 0 {
		return nil, 0, errors.New("R404").WithDetailf("no records for mount %q", mount)
	}

	var root *protocol.WireNode
	var last uint64
	for _, seq := range seqs {
		if upto != 0 && seq > upto {
			break
		}
		if seq != last+1 {
			return nil, last, errors.New("R404").WithDetailf("mount %q: pass %d missing", mount, last+1)
		}
		rec, err := store.Get(ctx, mount, seq)
		if err != nil {
			return nil, last, err
		}
		if root, err = protocol.Replay(root, rec.Changes); err != nil {
			return nil, last, err
		}
		last = seq
	}
	if upto != 0 && last != upto {
		return nil, last, errors.New("R404").WithDetailf("mount %q: pass %d not recorded", mount, upto)
	}
	return root, last, nil
}
