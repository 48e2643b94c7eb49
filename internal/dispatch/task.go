// Package dispatch implements the cooperative worker pool that drives
// process execution: every scheduling turn runs a process for at most a
// fixed instruction budget before yielding, so one guest can never
// monopolize a worker.
package dispatch

import (
	"context"

	"github.com/hearthcore/hearth/pkg/capability"
)

// Task is one process's schedulable unit of work. The guest adapter
// (internal/guest) implements Task for WASM execution slices; ordinary
// host-native processes can implement it directly for mailbox-driven
// message loops.
type Task interface {
	// ID identifies the owning process, used for fairness accounting
	// and for dropping a task whose process has since been killed.
	ID() capability.ProcessID
	// RunSlice executes up to budget instructions' worth of work.
	// consumed reports how much of the budget was actually used; more
	// reports whether the task has further work and wants to be
	// rescheduled.
	RunSlice(ctx context.Context, budget int) (consumed int, more bool, err error)
}
