// Package process implements the process table: spawn, exit, link,
// monitor and the termination cascade that keeps the supervision graph
// consistent when any member of it exits.
package process

import (
	"sync/atomic"

	"github.com/hearthcore/hearth/internal/mailbox"
	"github.com/hearthcore/hearth/pkg/capability"
)

// Process is one runtime-scheduled unit of execution: a mailbox plus the
// bookkeeping the Table needs to run the termination protocol exactly
// once. Dispatch (internal/dispatch) and the guest adapter (internal/
// guest) hold a *Process to drive actual execution; Table owns the
// supervision graph around it.
type Process struct {
	ID      capability.ProcessID
	Mailbox *mailbox.Mailbox

	terminating atomic.Bool
	exitReason  atomic.Pointer[error]
}

func newProcess(id capability.ProcessID, mb *mailbox.Mailbox) *Process {
	return &Process{ID: id, Mailbox: mb}
}

// markTerminating flips the Terminating guard exactly once; subsequent
// calls (from a concurrent Kill racing an Exit, for instance) observe
// false and must not re-run the termination protocol.
func (p *Process) markTerminating() bool {
	return p.terminating.CompareAndSwap(false, true)
}

// IsTerminating reports whether this process has begun (or finished)
// exiting.
func (p *Process) IsTerminating() bool { return p.terminating.Load() }

// ExitReason returns the reason this process exited, or nil if it is
// still alive.
func (p *Process) ExitReason() error {
	if r := p.exitReason.Load(); r != nil {
		return *r
	}
	return nil
}

func (p *Process) setExitReason(err error) {
	p.exitReason.Store(&err)
}

// Info is the introspection-friendly snapshot of a process, returned by
// Table.Snapshot for the IPC ListProcesses surface.
type Info struct {
	ID          capability.ProcessID
	Terminating bool
	ExitReason  error
	Mailbox     mailbox.Stats
	LinkCount   int
	WatcherCount int
}
