package mailbox

import (
	"sync"

	"github.com/hearthcore/hearth/pkg/capability"
)

// Set is the runtime-wide registry of live mailboxes, keyed by owning
// process. Grounded on Hub's sync.Map of cells; a process table
// (internal/process) layers supervision semantics on top of this.
type Set struct {
	mu    sync.RWMutex
	boxes map[capability.ProcessID]*Mailbox
}

func NewSet() *Set {
	return &Set{boxes: make(map[capability.ProcessID]*Mailbox)}
}

// Create allocates and registers a new mailbox for owner. Returns
// ErrClosed-shaped behavior is not applicable here; Create never fails
// except by panicking on a duplicate owner, which would indicate a
// process-table bug upstream.
func (s *Set) Create(owner capability.ProcessID, opts ...Option) *Mailbox {
	m := New(owner, opts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.boxes[owner]; exists {
		panic("mailbox: duplicate owner " + owner.String())
	}
	s.boxes[owner] = m
	return m
}

// Lookup returns the mailbox for owner, or ErrNotFound.
func (s *Set) Lookup(owner capability.ProcessID) (*Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.boxes[owner]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// Remove closes and unregisters owner's mailbox, if present.
func (s *Set) Remove(owner capability.ProcessID) {
	s.mu.Lock()
	m, ok := s.boxes[owner]
	if ok {
		delete(s.boxes, owner)
	}
	s.mu.Unlock()
	if ok {
		m.Close()
	}
}

// Snapshot returns every live mailbox's stats keyed by owner, for the
// IPC ListProcesses surface.
func (s *Set) Snapshot() map[capability.ProcessID]Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[capability.ProcessID]Stats, len(s.boxes))
	for id, m := range s.boxes {
		out[id] = m.Stats()
	}
	return out
}

// Len reports the number of live mailboxes.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.boxes)
}
