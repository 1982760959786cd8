// Package vtest provides testing helpers for code that renders virtual
// trees.
//
// A Harness owns an in-memory document and a renderer mounted on it, and
// fails the test on any render or dispatch error:
//
//	func TestCounter(t *testing.T) {
//	    h := vtest.New[Msg](t, "app")
//	    h.Render(view(0))
//	    h.ExpectMarkup(`<button on:click>0</button>`)
//
//	    h.Fire(vdom.Path{0}, "click", "")
//	    if got := h.Messages(); len(got) != 1 {
//	        t.Fatalf("messages = %v", got)
//	    }
//	}
//
// After every successful pass the harness checks that the document is
// congruent with the rendered tree and that no listener handle leaked.
//
// # Markup Assertions
//
// The Expect helpers assert on the markup of a tree without mounting it:
//
//	vtest.ExpectContains(t, node, "Welcome")
//	vtest.ExpectAttribute(t, node, "class", "btn primary")
package vtest
