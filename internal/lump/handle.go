package lump

import "sync/atomic"

// refcount tracks how many live holders a digest has. When it reaches
// zero the store deletes the durable copy; the hot-tier copy stays until
// the LRU evicts it.
type refcount struct {
	n atomic.Int64
}

func (r *refcount) incr() int64 { return r.n.Add(1) }
func (r *refcount) decr() int64 { return r.n.Add(-1) }
func (r *refcount) load() int64 { return r.n.Load() }

// Handle is a refcounted reference to a lump's content, obtained from
// Put or Get. Holding a Handle keeps the content pinned against
// eviction; Release must be called exactly once per Handle obtained.
type Handle struct {
	store  *Store
	Digest Digest
	Size   int
}

// Release decrements the handle's refcount. Once every outstanding
// handle for a digest has been released, the store deletes the durable
// copy right away; the hot tier keeps its copy until LRU eviction.
func (h *Handle) Release() {
	h.store.release(h.Digest)
}
