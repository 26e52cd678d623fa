package graphql

import "fmt"

// Error is the wire shape described in spec.md §6: a message plus optional
// path, source nodes, and wrapped cause. It is what both context-build
// errors (§7 #1) and subschema-reported errors (§7 #2) are normalized to.
type Error struct {
	Message       string        `json:"message"`
	Path          []interface{} `json:"path,omitempty"`
	OriginalError error         `json:"-"`
}

func (e *Error) Error() string {
	if e.OriginalError != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.OriginalError)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.OriginalError }

// NewError builds a plain Error with no path, the common case for
// context-build errors raised before planning begins.
func NewError(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error around a subschema-thrown rejection (§7 #3),
// keeping the original error reachable via errors.Unwrap.
func WrapError(cause error, path []interface{}) *Error {
	return &Error{
		Message:       cause.Error(),
		Path:          path,
		OriginalError: cause,
	}
}

// InvariantViolation marks a fatal, non-user-facing failure (§7 #4):
// a malformed subschema response, a missing stitch arm, an unknown runtime
// type. Implementations must not swallow these; the composer logs them and
// reports them as internal failures rather than ordinary field errors.
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string { return "stitching invariant violated: " + e.Message }

// NewInvariantViolation builds an InvariantViolation.
func NewInvariantViolation(format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{Message: fmt.Sprintf(format, args...)}
}
