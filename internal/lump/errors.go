package lump

import "errors"

// ErrNotFound is returned by a Fetcher when the remote side doesn't
// have a digest that both local tiers missed (a store with no fetcher
// configured returns ErrNoFetcher instead).
var ErrNotFound = errors.New("lump: not found")

// ErrCorrupt is returned when bytes read back from the durable tier
// don't hash to the digest they were stored under.
var ErrCorrupt = errors.New("lump: corrupt")

// ErrNoFetcher is returned by Get on a cache miss when no remote fetcher
// has been configured for this store.
var ErrNoFetcher = errors.New("lump: no fetcher configured, cannot satisfy remote miss")
