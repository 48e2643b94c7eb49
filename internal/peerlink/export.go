package peerlink

import (
	"sync"

	"github.com/hearthcore/hearth/pkg/capability"
)

// exportTable assigns each local process we've told a peer about a
// small per-connection handle number, so wire frames never carry a
// process's real uuid-based ProcessID (which would let a remote peer
// guess at or collide with ids meant to stay process-local).
type exportTable struct {
	mu      sync.Mutex
	next    uint64
	byID    map[capability.ProcessID]uint64
	byHandle map[uint64]capability.Capability
}

func newExportTable() *exportTable {
	return &exportTable{
		byID:     make(map[capability.ProcessID]uint64),
		byHandle: make(map[uint64]capability.Capability),
	}
}

// export returns the handle previously assigned to cap.Target, minting
// one if this is the first time this connection has exported it. Note
// the permission mask exported is whatever the caller passed in — a
// capability narrowed before being handed to peerlink stays narrowed on
// the wire.
func (e *exportTable) export(c capability.Capability) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.byID[c.Target]; ok {
		return h
	}
	h := e.next
	e.next++
	e.byID[c.Target] = h
	e.byHandle[h] = c
	return h
}

func (e *exportTable) resolve(handle uint64) (capability.Capability, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.byHandle[handle]
	return c, ok
}

func (e *exportTable) revoke(target capability.ProcessID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.byID[target]; ok {
		delete(e.byID, target)
		delete(e.byHandle, h)
	}
}
