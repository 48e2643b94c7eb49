package guest

import (
	"errors"
	"fmt"
)

// errYield is raised (as a panic value) by the tick host call when a
// guest's instruction budget for the current slice is exhausted. It unwinds the
// in-flight wasm call via wazero's normal host-function-error trapping,
// but RunSlice treats it as "ran out of slice, reschedule" rather than a
// guest fault.
var errYield = errors.New("guest: slice budget exhausted")

// Trap is the reason a process terminates when its guest code faults:
// an invalid handle, an out-of-bounds memory access, a permission
// violation on a capability it tried to use, or any other host-call
// contract violation. Exactly one process terminates per trap — a
// faulting guest never takes down anything it isn't linked to.
type Trap struct {
	Reason string
}

func (t *Trap) Error() string { return fmt.Sprintf("guest: trapped: %s", t.Reason) }

func trapf(format string, args ...any) *Trap {
	return &Trap{Reason: fmt.Sprintf(format, args...)}
}
