package protocol

import stderrors "errors"

// MaxNodeDepth limits the nesting depth of decoded trees.
const MaxNodeDepth = 256

// MaxPathDepth limits the length of a decoded element path.
const MaxPathDepth = MaxNodeDepth

// ErrMaxDepthExceeded is returned when a decoded tree or path nests
// deeper than the limit.
var ErrMaxDepthExceeded = stderrors.New("protocol: maximum depth exceeded")

func checkDepth(current, max int) error {
	if current > max {
		return ErrMaxDepthExceeded
	}
	return nil
}
