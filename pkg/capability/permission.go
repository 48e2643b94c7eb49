// Package capability implements the unforgeable, narrowable references
// processes use to address mailboxes across the runtime.
package capability

import (
	"fmt"
	"strings"
)

// Permission is a bit in a Capability's permission mask. Permissions only
// ever shrink: Narrow can clear bits, nothing can ever set one.
type Permission uint8

const (
	// Send allows enqueueing an envelope into the target mailbox.
	Send Permission = 1 << iota
	// Monitor allows subscribing for a one-shot Down signal on exit.
	Monitor
	// Link allows establishing a bidirectional co-termination link.
	Link
	// Kill allows forcing immediate termination of the target process.
	Kill

	// All is the full permission set minted by spawn.
	All = Send | Monitor | Link | Kill
	// None grants nothing; a capability narrowed to None is inert but
	// still identifies its target for equality/logging purposes.
	None Permission = 0
)

// Has reports whether every bit in want is present in p.
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// Intersect returns the permissions present in both p and other.
func (p Permission) Intersect(other Permission) Permission {
	return p & other
}

func (p Permission) String() string {
	if p == None {
		return "none"
	}
	var b strings.Builder
	for _, f := range []struct {
		bit  Permission
		name string
	}{
		{Send, "send"},
		{Monitor, "monitor"},
		{Link, "link"},
		{Kill, "kill"},
	} {
		if p.Has(f.bit) {
			if b.Len() > 0 {
				b.WriteByte('|')
			}
			b.WriteString(f.name)
		}
	}
	return b.String()
}

// Required maps each guarded operation to the permission bit it needs.
// Pinned down per the capability permission matrix open question: Send
// is independent of the other three; Monitor guards monitor and
// demonitor, Link guards link and unlink, and Kill guards kill.
func Required(op Operation) Permission {
	switch op {
	case OpSend:
		return Send
	case OpMonitor, OpDemonitor:
		return Monitor
	case OpLink, OpUnlink:
		return Link
	case OpKill:
		return Kill
	default:
		panic(fmt.Sprintf("capability: unknown operation %v", op))
	}
}

// Operation names a capability-guarded action for Required's lookup.
type Operation uint8

const (
	OpSend Operation = iota
	OpMonitor
	OpDemonitor
	OpLink
	OpUnlink
	OpKill
)
