package dom

import (
	"context"
	stderrors "errors"

	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// Run is a minimal application loop. It waits for messages in the
// renderer's pool, hands each drained batch to update and renders the tree
// it returns. A failed pass resets the mount and renders the same tree from
// scratch; if that fails too Run returns the error, joined with any error
// the reset reported.
//
// Run returns ctx.Err() when ctx is cancelled.
func Run[M any](ctx context.Context, r *Renderer[M], update func(msgs []M) *vdom.Tree[M]) error {
	pool := r.Pool()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pool.Ready():
		}

		msgs := pool.Drain()
		if len(msgs) == 0 {
			continue
		}
		next := update(msgs)
		if err := r.Render(ctx, next); err != nil {
			resetErr := r.Reset()
			if err := r.Render(ctx, next); err != nil {
				return stderrors.Join(err, resetErr)
			}
		}
	}
}
