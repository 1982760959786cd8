// Package dom applies change sequences produced by vdom.Diff to a live
// backend tree.
//
// The backend is reached only through the Backend interface: element
// creation and destruction, child insertion, attributes, classes and
// native event subscriptions. Mount keeps a mirror of the mounted elements
// and owns every listener handle it attaches; Renderer adds the reference
// tree, logging, tracing and pass observation on top.
//
// A pass is transactional in order: the first change that fails aborts
// the rest and poisons the mount until Reset.
//
//	r := dom.NewRenderer("app", backend, container, pool)
//	if err := r.Render(ctx, vdom.NewTree("app", view(model))); err != nil {
//	    r.Reset()
//	}
package dom
