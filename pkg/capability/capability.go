package capability

import (
	"github.com/google/uuid"
)

// ProcessID identifies a process uniquely for the lifetime of a runtime.
// Peer-imported processes carry the same type; the peer link's export
// table is what keeps remote and local ids from colliding (see
// internal/peerlink).
type ProcessID uuid.UUID

func NewProcessID() ProcessID { return ProcessID(uuid.New()) }

func (id ProcessID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether id is the zero value (never a valid process).
func (id ProcessID) IsZero() bool { return id == ProcessID{} }

// Capability is an unforgeable, narrowable reference to a process's
// mailbox. Capabilities are plain values: equality compares target and
// permission mask, and there is no global table mapping a Capability back
// to anything except through whatever holds it (a mailbox's capability
// list, the export/import tables in internal/peerlink, or the guest
// adapter's opaque per-process handle table in internal/guest).
type Capability struct {
	Target ProcessID
	Perms  Permission
}

// Root mints the unrestricted capability for target, as done exactly once
// at spawn time.
func Root(target ProcessID) Capability {
	return Capability{Target: target, Perms: All}
}

// Narrow returns a copy of c with its permission mask restricted to
// mask ∩ c.Perms. Narrowing is monotone and idempotent by construction:
// the result's permissions are always a subset of c's, so a chain of
// narrows can never recover a dropped bit (see pkg/capability's
// property tests for the algebraic law narrow(narrow(c,m1),m2) ==
// narrow(c, m1∩m2)).
func (c Capability) Narrow(mask Permission) Capability {
	return Capability{Target: c.Target, Perms: c.Perms.Intersect(mask)}
}

// Allows reports whether c grants the permission required by op.
func (c Capability) Allows(op Operation) bool {
	return c.Perms.Has(Required(op))
}

// CheckErr returns a *PermissionError if c does not grant op, else nil.
// It is the enforcement point process.Table's Link/Unlink/Monitor/Kill
// and the guest adapter's host calls use before acting on a capability
// they were handed.
func (c Capability) CheckErr(op Operation) error {
	if !c.Allows(op) {
		return &PermissionError{Have: c.Perms, Want: Required(op), Op: op}
	}
	return nil
}

// PermissionError reports a denied capability-guarded operation.
type PermissionError struct {
	Op   Operation
	Have Permission
	Want Permission
}

func (e *PermissionError) Error() string {
	return "capability: operation requires " + e.Want.String() + ", have " + e.Have.String()
}
