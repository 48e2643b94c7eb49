package lump

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// averageLumpBytes is used only to size the in-memory LRU's entry count
// from the configured byte budget; it is a rough heuristic, not a hard
// per-entry limit.
const averageLumpBytes = 64 * 1024

// Fetcher retrieves a lump's bytes from elsewhere — in practice,
// internal/peerlink's LumpRequest/LumpReply exchange with whichever peer
// exported the digest. Kept as an interface here so internal/lump never
// imports internal/peerlink (the dependency runs the other way).
type Fetcher interface {
	FetchLump(ctx context.Context, digest Digest) ([]byte, error)
}

// Store is the runtime's lump store: hot LRU tier, durable bbolt+zstd
// tier, refcounting, coalesced remote fetches, optional broadcast.
type Store struct {
	hot     *hotCache
	disk    *disk
	fetcher Fetcher
	bcast   *Broadcaster
	logger  *slog.Logger

	sf singleflight.Group

	mu   sync.Mutex
	refs map[Digest]*refcount
}

// Option configures a Store at construction.
type Option func(*Store)

func WithFetcher(f Fetcher) Option       { return func(s *Store) { s.fetcher = f } }
func WithBroadcaster(b *Broadcaster) Option { return func(s *Store) { s.bcast = b } }
func WithLogger(l *slog.Logger) Option   { return func(s *Store) { s.logger = l } }

// NewStore opens the durable tier at diskPath and sizes the hot tier to
// roughly hotBytes worth of average-sized lumps.
func NewStore(diskPath string, hotBytes int64, opts ...Option) (*Store, error) {
	d, err := openDisk(diskPath)
	if err != nil {
		return nil, err
	}
	entries := int(hotBytes / averageLumpBytes)
	if entries < 16 {
		entries = 16
	}
	hot, err := newHotCache(entries)
	if err != nil {
		d.close()
		return nil, err
	}
	s := &Store{
		hot:    hot,
		disk:   d,
		logger: slog.Default(),
		refs:   make(map[Digest]*refcount),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error { return s.disk.close() }

// SetFetcher wires a Fetcher in after construction — used when the
// fetcher itself (internal/peerlink's Mesh) needs a reference to this
// same Store to answer incoming LumpRequests, which would otherwise make
// NewStore and the fetcher mutually dependent at construction time. Must
// be called before the store sees concurrent Get traffic, same as any
// other one-time wiring step in internal/hearth.Runtime.New.
func (s *Store) SetFetcher(f Fetcher) {
	s.mu.Lock()
	s.fetcher = f
	s.mu.Unlock()
}

func (s *Store) getFetcher() Fetcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetcher
}

func (s *Store) refFor(d Digest) *refcount {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refs[d]
	if !ok {
		r = &refcount{}
		s.refs[d] = r
	}
	return r
}

// Put persists data under its content digest and returns a held Handle.
// Putting identical bytes twice is idempotent: the second call resolves
// to the same digest and simply adds another refcount.
func (s *Store) Put(data []byte) (*Handle, error) {
	digest := Compute(data)
	if err := s.disk.put(digest, data); err != nil {
		return nil, fmt.Errorf("lump: put: %w", err)
	}
	s.hot.put(digest, data)
	s.refFor(digest).incr()
	if err := s.bcast.announce(digest, len(data)); err != nil {
		s.logger.Warn("lump broadcast failed", "digest", digest, "err", err)
	}
	return &Handle{store: s, Digest: digest, Size: len(data)}, nil
}

// Get retrieves a lump's bytes, consulting the hot tier, then the
// durable tier, then — if a Fetcher is configured — a coalesced remote
// fetch shared across concurrent callers asking for the same digest.
func (s *Store) Get(ctx context.Context, digest Digest) (*Handle, []byte, error) {
	if data, ok := s.hot.get(digest); ok {
		s.refFor(digest).incr()
		return &Handle{store: s, Digest: digest, Size: len(data)}, data, nil
	}
	if data, ok, err := s.disk.get(digest); err != nil {
		return nil, nil, err
	} else if ok {
		s.hot.put(digest, data)
		s.refFor(digest).incr()
		return &Handle{store: s, Digest: digest, Size: len(data)}, data, nil
	}

	fetcher := s.getFetcher()
	if fetcher == nil {
		return nil, nil, ErrNoFetcher
	}
	v, err, _ := s.sf.Do(digest.String(), func() (any, error) {
		data, err := fetcher.FetchLump(ctx, digest)
		if err != nil {
			return nil, err
		}
		if Compute(data) != digest {
			return nil, ErrCorrupt
		}
		if err := s.disk.put(digest, data); err != nil {
			return nil, err
		}
		s.hot.put(digest, data)
		return data, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("lump: remote fetch %s: %w", digest, err)
	}
	data := v.([]byte)
	s.refFor(digest).incr()
	return &Handle{store: s, Digest: digest, Size: len(data)}, data, nil
}

// Hold adds a refcount to an already-known digest without fetching its
// bytes — used when a capability-free lump reference is transferred
// between processes that both already hold it (e.g. across a fork).
func (s *Store) Hold(digest Digest) *Handle {
	s.refFor(digest).incr()
	return &Handle{store: s, Digest: digest}
}

func (s *Store) release(digest Digest) {
	s.mu.Lock()
	r, ok := s.refs[digest]
	s.mu.Unlock()
	if !ok {
		return
	}
	if r.decr() > 0 {
		return
	}
	// Refcount hit zero: the hot tier is simply an LRU and can be left
	// alone, but the durable tier is the source of truth, so reclaim it
	// now rather than waiting for an unrelated eviction sweep.
	s.mu.Lock()
	if r.load() <= 0 {
		delete(s.refs, digest)
	}
	s.mu.Unlock()
	if err := s.disk.delete(digest); err != nil {
		s.logger.Warn("lump disk delete failed", "digest", digest, "err", err)
	}
}
