package lump

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lumps.db")
	s, err := NewStore(path, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	data := []byte("hello hearth")

	h, err := s.Put(data)
	require.NoError(t, err)
	require.Equal(t, Compute(data), h.Digest)
	h.Release()

	h2, got, err := s.Get(context.Background(), Compute(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
	h2.Release()
}

func TestPutIsIdempotentOnIdenticalContent(t *testing.T) {
	s := newTestStore(t)
	data := []byte("same bytes twice")

	h1, err := s.Put(data)
	require.NoError(t, err)
	h2, err := s.Put(data)
	require.NoError(t, err)
	require.Equal(t, h1.Digest, h2.Digest)
	h1.Release()
	h2.Release()
}

func TestGetMissingWithoutFetcherFails(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Get(context.Background(), Digest{0xAB})
	require.ErrorIs(t, err, ErrNoFetcher)
}

type fakeFetcher struct {
	calls int
	data  []byte
}

func (f *fakeFetcher) FetchLump(ctx context.Context, digest Digest) ([]byte, error) {
	f.calls++
	return f.data, nil
}

func TestGetFallsBackToFetcherAndCaches(t *testing.T) {
	data := []byte("remote content")
	fetcher := &fakeFetcher{data: data}
	path := filepath.Join(t.TempDir(), "lumps.db")
	s, err := NewStore(path, 1<<20, WithFetcher(fetcher))
	require.NoError(t, err)
	defer s.Close()

	digest := Compute(data)
	h1, got1, err := s.Get(context.Background(), digest)
	require.NoError(t, err)
	require.Equal(t, data, got1)
	h1.Release()

	h2, got2, err := s.Get(context.Background(), digest)
	require.NoError(t, err)
	require.Equal(t, data, got2)
	h2.Release()

	require.Equal(t, 1, fetcher.calls, "second Get must hit the hot tier, not refetch")
}

func TestFetcherCorruptionDetected(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("wrong bytes")}
	path := filepath.Join(t.TempDir(), "lumps.db")
	s, err := NewStore(path, 1<<20, WithFetcher(fetcher))
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.Get(context.Background(), Digest{0x01, 0x02})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCorrupt))
}

func TestReleaseToZeroReclaimsDiskEntry(t *testing.T) {
	s := newTestStore(t)
	data := []byte("ephemeral")
	h, err := s.Put(data)
	require.NoError(t, err)
	digest := h.Digest
	h.Release()

	_, found, err := s.disk.get(digest)
	require.NoError(t, err)
	require.False(t, found, "disk entry should be reclaimed once refcount hits zero")
}
