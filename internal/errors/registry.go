package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Structural Errors (R100-R199)
	// ============================================

	"R101": {
		Category:   CategoryStructural,
		Message:    "Listener already attached",
		Suggestion: "Detach the previous subscription before attaching the listener again, or use a fresh listener value per element.",
	},
	"R102": {
		Category:   CategoryStructural,
		Message:    "Tree is sealed",
		Suggestion: "Build a new tree for the next render pass instead of mutating one that was already diffed.",
	},
	"R103": {
		Category: CategoryStructural,
		Message:  "Listener handle is not attached",
	},
	"R104": {
		Category: CategoryStructural,
		Message:  "Duplicate entry",
	},
	"R105": {
		Category: CategoryStructural,
		Message:  "Element operation on text node",
	},
	"R106": {
		Category:   CategoryStructural,
		Message:    "Node already has a parent",
		Suggestion: "Build a separate node for each position; subtrees cannot be shared.",
	},

	// ============================================
	// Diff Errors (R200-R299)
	// ============================================

	"R201": {
		Category: CategoryDiff,
		Message:  "Trees are mounted on different roots",
	},
	"R202": {
		Category: CategoryDiff,
		Message:  "Change targets a position that does not exist",
	},

	// ============================================
	// Backend Errors (R300-R399)
	// ============================================

	"R301": {
		Category:   CategoryBackend,
		Message:    "Element no longer exists",
		Suggestion: "Reset the mount and render the current tree from scratch.",
	},
	"R302": {
		Category: CategoryBackend,
		Message:  "Backend operation failed",
	},
	"R303": {
		Category:   CategoryBackend,
		Message:    "Mount is inconsistent after a failed render pass",
		Suggestion: "Call Reset and render again from an empty tree.",
	},

	// ============================================
	// Tooling Errors (R400-R499)
	// ============================================

	"R401": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration",
		Suggestion: "Check that vreconcile.json (or .yaml) is valid",
	},
	"R402": {
		Category: CategoryDocument,
		Message:  "Invalid tree document",
	},
	"R403": {
		Category: CategoryProtocol,
		Message:  "Malformed binary payload",
	},
	"R404": {
		Category: CategoryProtocol,
		Message:  "Snapshot not found",
	},
	"R405": {
		Category:   CategoryDocument,
		Message:    "Cannot watch tree document",
		Suggestion: "Check that the document's directory exists, or serve without --watch",
	},
}

// Lookup returns the template for a code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
