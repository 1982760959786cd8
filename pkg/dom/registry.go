package dom

import (
	stderrors "errors"
	"sort"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/vdom"
)

// registry owns the live listener handles of one element, keyed by event
// kind. At most one handle per kind is live.
type registry struct {
	handles map[string]*vdom.Handle
}

func (r *registry) has(kind string) bool {
	_, ok := r.handles[kind]
	return ok
}

func (r *registry) len() int {
	return len(r.handles)
}

func (r *registry) put(kind string, h *vdom.Handle) error {
	if r.has(kind) {
		return errors.New("R101").WithDetailf("%s listener is already live on this element", kind)
	}
	if r.handles == nil {
		r.handles = make(map[string]*vdom.Handle)
	}
	r.handles[kind] = h
	return nil
}

// detach releases the handle for kind. The entry is dropped even when the
// backend fails to cancel so the handle is never released twice.
func (r *registry) detach(kind string) error {
	h, ok := r.handles[kind]
	if !ok {
		return errors.New("R103").WithDetailf("no live %s listener on this element", kind)
	}
	delete(r.handles, kind)
	return h.Detach()
}

// detachAll releases every handle in kind order.
func (r *registry) detachAll() error {
	kinds := make([]string, 0, len(r.handles))
	for k := range r.handles {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	var errs []error
	for _, k := range kinds {
		if err := r.detach(k); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
