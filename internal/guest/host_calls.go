package guest

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/hearthcore/hearth/internal/lump"
	"github.com/hearthcore/hearth/internal/mailbox"
	"github.com/hearthcore/hearth/internal/process"
	"github.com/hearthcore/hearth/pkg/capability"
)

// buildHostModule registers the "hearth" host module's entire call
// surface. Every function that touches guest memory validates offsets
// against the module's own api.Memory before reading/writing; every
// function that touches a handle validates it against this process's
// handleTable before ever looking at its capability bits.
func (a *Adapter) buildHostModule(ctx context.Context) (api.Module, error) {
	b := a.runtime.NewHostModuleBuilder("hearth")

	b.NewFunctionBuilder().WithFunc(a.hostTick).Export("tick")
	b.NewFunctionBuilder().WithFunc(a.hostSend).Export("send")
	b.NewFunctionBuilder().WithFunc(a.hostRecv).Export("recv")
	b.NewFunctionBuilder().WithFunc(a.hostMonitor).Export("monitor")
	b.NewFunctionBuilder().WithFunc(a.hostDemonitor).Export("demonitor")
	b.NewFunctionBuilder().WithFunc(a.hostLink).Export("link")
	b.NewFunctionBuilder().WithFunc(a.hostUnlink).Export("unlink")
	b.NewFunctionBuilder().WithFunc(a.hostSpawn).Export("spawn")
	b.NewFunctionBuilder().WithFunc(a.hostLumpPut).Export("lump_put")
	b.NewFunctionBuilder().WithFunc(a.hostLumpGet).Export("lump_get")

	return b.Instantiate(ctx)
}

// hostTick is the compiler-inserted metering checkpoint: guest code
// calls it periodically (once per basic block or loop back-edge) with
// the number of instructions executed since the last checkpoint. Once
// the slice budget is exhausted it panics with errYield, which wazero
// recovers and surfaces as a call error, unwinding the current
// entrypoint invocation cleanly.
func (a *Adapter) hostTick(ctx context.Context, mod api.Module, n uint32) uint32 {
	a.consumed += int(n)
	if a.consumed >= a.budget {
		panic(errYield) // recovered by wazero as a host-function trap
	}
	return 0
}

func (a *Adapter) fault(reason string) {
	a.trapped = true
	a.trapReason = trapf("%s", reason)
}

func memRead(mod api.Module, ptr, size uint32) ([]byte, bool) {
	return mod.Memory().Read(ptr, size)
}

// hostSend enqueues a message addressed by handle. Returns 1 on
// success and 0 otherwise. An unknown handle, a handle lacking Send
// permission or an out-of-bounds payload also traps the guest; a target
// that is already gone or an envelope dropped under backpressure does
// not.
func (a *Adapter) hostSend(ctx context.Context, mod api.Module, handle uint32, ptr, size uint32) uint32 {
	target, ok := a.handles.lookup(handle)
	if !ok {
		a.fault("send: unknown handle")
		return 0
	}
	if err := target.CheckErr(capability.OpSend); err != nil {
		a.fault("send: " + err.Error())
		return 0
	}
	payload, ok := memRead(mod, ptr, size)
	if !ok {
		a.fault("send: out-of-bounds payload")
		return 0
	}
	mb, err := a.deps.Mailboxes.Lookup(target.Target)
	if err != nil {
		return 0 // target already gone; not a fault, ordinary race
	}
	delivered, err := mb.Push(ctx, mailbox.Envelope{From: a.id, Payload: append([]byte(nil), payload...)})
	if err != nil || !delivered {
		return 0
	}
	return 1
}

// hostRecv is non-blocking by design: the cooperative scheduler relies
// on a guest returning control (ending its slice) when there's nothing
// to do, rather than ever parking inside a host call. Returns the
// number of payload bytes written to ptr, or 0 if the mailbox is empty.
func (a *Adapter) hostRecv(ctx context.Context, mod api.Module, ptr, capacity uint32) uint32 {
	mb, err := a.deps.Mailboxes.Lookup(a.id)
	if err != nil {
		a.fault("recv: own mailbox missing")
		return 0
	}
	msg, ok := mb.TryReceive()
	if !ok {
		return 0
	}
	var payload []byte
	switch {
	case msg.Envelope != nil:
		payload = msg.Envelope.Payload
	case msg.Signal != nil:
		payload = encodeSignal(*msg.Signal)
	}
	if uint32(len(payload)) > capacity {
		a.fault("recv: guest buffer too small")
		return 0
	}
	if !mod.Memory().Write(ptr, payload) {
		a.fault("recv: out-of-bounds destination buffer")
		return 0
	}
	return uint32(len(payload))
}

// encodeSignal gives a guest a uniform view of Down/Unlink signals: a
// one-byte kind tag followed by the 16-byte target process id.
func encodeSignal(s mailbox.Signal) []byte {
	out := make([]byte, 1+16)
	out[0] = byte(s.Kind) + 0x80 // high bit marks "this is a signal, not a payload"
	tgt := s.Target
	for i := 0; i < 16; i++ {
		out[1+i] = tgt[i]
	}
	return out
}

// hostMonitor subscribes this process for a Down signal on handle's
// target, returning a new opaque handle standing in for the resulting
// MonitorRef so the guest can later demonitor without ever seeing the
// underlying ref type. Returns 0 (an otherwise-valid handle slot) on
// failure; callers distinguish failure by checking trapped state, same
// as every other host call here.
func (a *Adapter) hostMonitor(ctx context.Context, mod api.Module, handle uint32) uint32 {
	target, ok := a.handles.lookup(handle)
	if !ok {
		a.fault("monitor: unknown handle")
		return 0
	}
	ref, err := a.deps.Table.Monitor(a.id, target)
	if err != nil {
		a.fault("monitor: " + err.Error())
		return 0
	}
	return a.handles.insert(capability.Capability{Target: capability.ProcessID(ref), Perms: capability.None})
}

// hostDemonitor consumes a handle previously returned by hostMonitor,
// cancelling the underlying subscription and releasing the handle slot.
func (a *Adapter) hostDemonitor(ctx context.Context, mod api.Module, handle uint32) uint32 {
	c, ok := a.handles.lookup(handle)
	if !ok {
		a.fault("demonitor: unknown handle")
		return 0
	}
	ref := process.MonitorRef(c.Target)
	if err := a.deps.Table.Demonitor(ref); err != nil {
		a.fault("demonitor: " + err.Error())
		return 0
	}
	a.handles.remove(handle)
	return 1
}

func (a *Adapter) hostLink(ctx context.Context, mod api.Module, handle uint32) uint32 {
	target, ok := a.handles.lookup(handle)
	if !ok {
		a.fault("link: unknown handle")
		return 0
	}
	if err := a.deps.Table.Link(a.id, target); err != nil {
		a.fault("link: " + err.Error())
		return 0
	}
	return 1
}

func (a *Adapter) hostUnlink(ctx context.Context, mod api.Module, handle uint32) uint32 {
	target, ok := a.handles.lookup(handle)
	if !ok {
		a.fault("unlink: unknown handle")
		return 0
	}
	if err := a.deps.Table.Unlink(a.id, target); err != nil {
		a.fault("unlink: " + err.Error())
		return 0
	}
	return 1
}

// hostSpawn reads a 32-byte module digest from digestPtr and an
// entrypoint name from entryPtr/entryLen, fetches the module from the
// lump store, spawns a child process for it, and schedules the child on
// the same dispatcher. Returns a handle wrapping the child's root
// capability (all permissions — narrowing is the caller's job, same as
// any other spawn per spec.md §4.1).
func (a *Adapter) hostSpawn(ctx context.Context, mod api.Module, digestPtr, entryPtr, entryLen uint32) uint32 {
	digestBytes, ok := memRead(mod, digestPtr, 32)
	if !ok {
		a.fault("spawn: out-of-bounds digest")
		return 0
	}
	var digest lump.Digest
	copy(digest[:], digestBytes)

	entryBytes, ok := memRead(mod, entryPtr, entryLen)
	if !ok {
		a.fault("spawn: out-of-bounds entry name")
		return 0
	}

	h, wasmBytes, err := a.deps.Lumps.Get(ctx, digest)
	if err != nil {
		a.fault("spawn: fetch module: " + err.Error())
		return 0
	}
	defer h.Release()

	child, root := a.deps.Table.Spawn()
	childAdapter, err := New(ctx, root, a.deps, append([]byte(nil), wasmBytes...), string(entryBytes))
	if err != nil {
		a.deps.Table.Exit(child.ID, err)
		a.fault("spawn: instantiate child: " + err.Error())
		return 0
	}
	a.deps.Dispatcher.Submit(childAdapter)

	return a.handles.insert(root)
}

// hostLumpPut stores the size bytes at ptr and writes the resulting
// 32-byte digest to outDigestPtr. Returns 1 on success.
func (a *Adapter) hostLumpPut(ctx context.Context, mod api.Module, ptr, size, outDigestPtr uint32) uint32 {
	data, ok := memRead(mod, ptr, size)
	if !ok {
		a.fault("lump_put: out-of-bounds payload")
		return 0
	}
	h, err := a.deps.Lumps.Put(data)
	if err != nil {
		a.fault("lump_put: " + err.Error())
		return 0
	}
	if !mod.Memory().Write(outDigestPtr, h.Digest[:]) {
		a.fault("lump_put: out-of-bounds digest destination")
		return 0
	}
	return 1
}

// hostLumpGet reads a 32-byte digest from digestPtr and, if found,
// writes the lump's bytes to ptr; a lump larger than capacity traps the
// guest rather than being truncated. Returns the number of bytes
// written, or 0 on miss/fault.
func (a *Adapter) hostLumpGet(ctx context.Context, mod api.Module, digestPtr, ptr, capacity uint32) uint32 {
	raw, ok := memRead(mod, digestPtr, 32)
	if !ok {
		a.fault("lump_get: out-of-bounds digest source")
		return 0
	}
	var digest lump.Digest
	copy(digest[:], raw)

	h, data, err := a.deps.Lumps.Get(ctx, digest)
	if err != nil {
		return 0 // miss is ordinary, not a fault
	}
	defer h.Release()
	if uint32(len(data)) > capacity {
		a.fault("lump_get: guest buffer too small")
		return 0
	}
	if !mod.Memory().Write(ptr, data) {
		a.fault("lump_get: out-of-bounds destination buffer")
		return 0
	}
	return uint32(len(data))
}
