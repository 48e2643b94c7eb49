package peerlink

import (
	"sync"

	"github.com/hearthcore/hearth/pkg/capability"
)

// importTable maps a remote handle (as assigned by the peer's own
// exportTable) to the local shim process.Table spawned to represent it.
// Sending to the shim's mailbox is indistinguishable, from any local
// caller's point of view, from sending to an ordinary local process —
// the forwarder goroutine started in link.go is what actually puts the
// bytes on the wire. That is the whole of "transparent remoting": the
// Send call never changes shape based on locality.
type importTable struct {
	mu   sync.Mutex
	byHandle map[uint64]capability.ProcessID
	byShim   map[capability.ProcessID]uint64
}

func newImportTable() *importTable {
	return &importTable{
		byHandle: make(map[uint64]capability.ProcessID),
		byShim:   make(map[capability.ProcessID]uint64),
	}
}

func (i *importTable) get(handle uint64) (capability.ProcessID, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id, ok := i.byHandle[handle]
	return id, ok
}

func (i *importTable) put(handle uint64, shim capability.ProcessID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byHandle[handle] = shim
	i.byShim[shim] = handle
}

func (i *importTable) remove(handle uint64) (capability.ProcessID, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id, ok := i.byHandle[handle]
	if ok {
		delete(i.byHandle, handle)
		delete(i.byShim, id)
	}
	return id, ok
}

// all returns every currently imported shim, used to tear them all down
// atomically when the connection drops (PeerGone).
func (i *importTable) all() []capability.ProcessID {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]capability.ProcessID, 0, len(i.byHandle))
	for _, id := range i.byHandle {
		out = append(out, id)
	}
	return out
}
