package guest

import (
	"sync"

	"github.com/hearthcore/hearth/pkg/capability"
)

// handleTable maps small guest-visible integers to real capabilities.
// The guest's linear memory never holds a Capability value directly —
// only the opaque index — so a corrupted or adversarial guest can at
// worst name a handle it was never given (which a bounds check rejects)
// and can never forge a capability's permission bits out of thin air.
type handleTable struct {
	mu    sync.Mutex
	next  uint32
	slots map[uint32]capability.Capability
}

func newHandleTable() *handleTable {
	return &handleTable{slots: make(map[uint32]capability.Capability)}
}

func (h *handleTable) insert(c capability.Capability) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.slots[id] = c
	return id
}

func (h *handleTable) lookup(id uint32) (capability.Capability, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.slots[id]
	return c, ok
}

func (h *handleTable) remove(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.slots, id)
}
