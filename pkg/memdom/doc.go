// Package memdom is an in-memory backend for package dom.
//
// A Document holds a container element (RootTag) under which a dom.Mount
// manages its elements. It records live event subscriptions, lets callers
// fire events with Dispatch, and renders its content with Dump in the same
// format Markup uses for virtual trees, which makes congruence checks a
// string comparison.
//
//	doc := memdom.NewDocument()
//	r := dom.NewRenderer("app", doc, doc.Root(), pool)
//	r.Render(ctx, tree)
//	fmt.Println(doc.Dump())
package memdom
