// Package guest sandboxes a single process's code as a WASM module,
// exposing send/recv/monitor/link/spawn/lump as host calls over an
// opaque per-process handle table.
package guest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/hearthcore/hearth/internal/dispatch"
	"github.com/hearthcore/hearth/internal/lump"
	"github.com/hearthcore/hearth/internal/mailbox"
	"github.com/hearthcore/hearth/internal/process"
	"github.com/hearthcore/hearth/pkg/capability"
)

// defaultSliceTimeout bounds a RunSlice call in wall-clock terms,
// independent of the guest's own tick()-reported instruction count. It is
// the backstop for a guest that never yields cooperatively (e.g. an empty
// `loop {}`): wazero's WithCloseOnContextDone runtime option makes the
// engine tear the module down the moment this deadline fires, rather than
// waiting for the guest to reach its own next host-call boundary.
const defaultSliceTimeout = 2 * time.Second

// Deps are the runtime components a guest's host calls reach into.
type Deps struct {
	Mailboxes  *mailbox.Set
	Table      *process.Table
	Lumps      *lump.Store
	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger
}

// Adapter runs one process's code as a WASM module and implements
// dispatch.Task so the dispatcher can schedule it like any other
// process. Grounded on spec.md's guest boundary (§4.6): the engine's
// internals are wazero's concern, only the host-call surface and trap
// semantics are this package's.
type Adapter struct {
	id      capability.ProcessID
	deps    Deps
	self    capability.Capability
	handles *handleTable

	runtime wazero.Runtime
	module  api.Module
	entry   api.Function

	sliceTimeout time.Duration
	budget       int
	consumed     int
	trapped      bool
	trapReason   error
}

// New compiles wasmBytes and instantiates it with the host call surface
// bound to deps, under the identity of self (the capability minted for
// this process at spawn). entryFn names the guest's exported scheduling
// entrypoint, called once per RunSlice.
func New(ctx context.Context, self capability.Capability, deps Deps, wasmBytes []byte, entryFn string) (*Adapter, error) {
	// WithCloseOnContextDone gives the engine a non-cooperative backstop:
	// when the context passed to a call is done, wazero forcibly closes
	// the module rather than waiting for the guest to reach a host-call
	// boundary on its own (spec.md §4.3's "a misbehaving guest yields
	// automatically").
	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	a := &Adapter{id: self.Target, deps: deps, self: self, handles: newHandleTable(), runtime: rt, sliceTimeout: defaultSliceTimeout}

	if _, err := a.buildHostModule(ctx); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	entry := mod.ExportedFunction(entryFn)
	if entry == nil {
		rt.Close(ctx)
		return nil, errors.New("guest: missing exported entrypoint " + entryFn)
	}
	a.module = mod
	a.entry = entry
	return a, nil
}

// ID satisfies dispatch.Task.
func (a *Adapter) ID() capability.ProcessID { return a.id }

// RunSlice executes the guest's entrypoint once with a freshly reset
// instruction budget. A returned *Trap terminates exactly this process
// (the dispatcher hands the reason to process.Table.Exit via its trap
// handler); errYield is swallowed and reported as "more work pending",
// since it signals nothing more than a cooperative budget exhaustion.
//
// A guest that never calls tick() at all is caught by sliceTimeout: the
// derived context expires, wazero's WithCloseOnContextDone config closes
// the module out from under the blocked call, and Call returns with the
// context's error instead of hanging the worker forever.
func (a *Adapter) RunSlice(parent context.Context, budget int) (consumed int, more bool, err error) {
	a.budget = budget
	a.consumed = 0
	a.trapped = false
	a.trapReason = nil

	ctx, cancel := context.WithTimeout(parent, a.sliceTimeout)
	defer cancel()

	_, callErr := a.entry.Call(ctx)
	if a.trapped {
		return a.consumed, false, a.trapReason
	}
	if callErr != nil {
		if errors.Is(callErr, errYield) {
			return a.consumed, true, nil
		}
		if ctx.Err() != nil {
			return a.consumed, false, trapf("guest exceeded its instruction slice without yielding cooperatively")
		}
		return a.consumed, false, trapf("entrypoint call failed: %v", callErr)
	}
	return a.consumed, false, nil
}

// Close releases the underlying wazero runtime.
func (a *Adapter) Close(ctx context.Context) error {
	return a.runtime.Close(ctx)
}

var _ dispatch.Task = (*Adapter)(nil)
