// Package errors provides coded, categorised errors for vreconcile.
//
// Every error returned across a package boundary carries a registry code
// (e.g., "R301") that maps to:
//   - A short message describing the error
//   - A category (structural, diff, backend, config, document, protocol)
//   - An optional hint on how to recover
//
// Codes compare with errors.Is, so a fresh error built with New matches a
// package-level sentinel built from the same code:
//
//	var ErrElementGone = errors.New("R301")
//
//	err := errors.New("R301").WithDetail("element 12")
//	stderrors.Is(err, ErrElementGone) // true
//
// # Error Categories
//
//   - structural: listener lifetime and tree ownership misuse (programming errors)
//   - diff: precondition violations when comparing trees
//   - backend: the rendering backend rejected a mutation; the pass is aborted
//   - config, document, protocol: tooling input errors
package errors
