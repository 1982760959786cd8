// Package vdom provides the virtual tree model and the differ.
//
// A render pass builds a fresh tree of VNodes, hands it to Diff together
// with the previously applied tree, and passes the resulting changes to an
// applier (see package dom). The tree is generic over M, the application
// message type produced by listeners.
//
// # Core Types
//
// VNode is either an element (tag, Attributes, ClassSet, children,
// listeners) or a text node. Trees are owned top-down: a node has at most
// one parent, and Diff seals both trees so later builder calls panic.
//
// # Element API
//
// Elements are created using variadic factory functions:
//
//	Div[Msg](Class("card"), ID("main"),
//	    H1[Msg]("Title"),
//	    P[Msg](Text[Msg]("Content")),
//	    OnClick(func(Event) Msg { return Clicked{} }),
//	)
//
// # Listeners
//
// A Listener translates one event kind into one message pushed to the shared
// Messages pool. Attaching returns a Handle that must be detached exactly
// once; detaching twice, or attaching a listener to an element it is
// already bound to, fails with a structural error. One listener value may
// be live on several elements, each with its own handle.
//
// # Diffing
//
// Diff returns a sequence of Change values, each wrapping one generic
// Patch (Add, Replace or Remove) over attributes, classes, listeners or
// children. Children are matched by position; there is no keyed
// reconciliation.
package vdom
