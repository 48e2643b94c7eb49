package lump

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"
)

var lumpsBucket = []byte("lumps")

// disk is the durable tier: zstd-compressed lump bodies in a bbolt
// database. Grounded on gravwell-gravwell's direct use of both libraries
// for local durable state.
type disk struct {
	db  *bolt.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func openDisk(path string) (*disk, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("lump: open disk tier: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(lumpsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("lump: init bucket: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &disk{db: db, enc: enc, dec: dec}, nil
}

func (d *disk) close() error {
	d.dec.Close()
	return d.db.Close()
}

// put compresses and persists data under digest.
func (d *disk) put(digest Digest, data []byte) error {
	compressed := d.enc.EncodeAll(data, nil)
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(lumpsBucket).Put(digest[:], compressed)
	})
}

// get decompresses and returns the bytes stored under digest, verifying
// the digest still matches (corruption detection).
func (d *disk) get(digest Digest) ([]byte, bool, error) {
	var compressed []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(lumpsBucket).Get(digest[:])
		if v != nil {
			compressed = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if compressed == nil {
		return nil, false, nil
	}
	data, err := d.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if Compute(data) != digest {
		return nil, false, ErrCorrupt
	}
	return data, true, nil
}

func (d *disk) delete(digest Digest) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(lumpsBucket).Delete(digest[:])
	})
}
