// Package treedoc loads virtual trees from JSON or YAML documents.
//
// A document names a mount and describes its root element:
//
//	mount: app
//	root:
//	  tag: div
//	  attrs: {id: main}
//	  classes: [card]
//	  on:
//	    click: '"clicked"'
//	  children:
//	    - text: hello
//
// Listener translations are expr-lang expressions evaluated against the
// firing event (kind, value, detail). A Loader keeps listener values stable
// across loads so unchanged listeners keep their subscriptions.
//
// Change sequences over document trees can be exported as RFC 6902 JSON
// Patch operations against the canonical JSON form of the document.
package treedoc
