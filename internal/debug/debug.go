// Package debug provides a dump helper for inspecting FieldPlans and merged
// response trees during development, grounded on the teacher's use of
// davecgh/go-spew for debugging complex nested structures.
package debug

import (
	"github.com/davecgh/go-spew/spew"
)

var config = &spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Dump renders v as a human-readable multi-line string, following pointers
// without printing their addresses (which would make golden-file tests
// non-deterministic).
func Dump(v interface{}) string {
	return config.Sdump(v)
}
