package lump

import lru "github.com/hashicorp/golang-lru/v2"

// hotCache is the in-memory tier: an LRU over decompressed lump bytes,
// sized in entry count (the store converts a byte budget into an entry
// count at construction based on an average-size estimate — see
// store.go's NewStore).
type hotCache struct {
	c *lru.Cache[Digest, []byte]
}

func newHotCache(size int) (*hotCache, error) {
	c, err := lru.New[Digest, []byte](size)
	if err != nil {
		return nil, err
	}
	return &hotCache{c: c}, nil
}

func (h *hotCache) get(d Digest) ([]byte, bool) { return h.c.Get(d) }
func (h *hotCache) put(d Digest, data []byte)   { h.c.Add(d, data) }
func (h *hotCache) remove(d Digest)             { h.c.Remove(d) }
