package peerlink

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"
)

const maxFrameBytes = 16 << 20

// framer serializes Frame values behind a 4-byte big-endian length
// prefix (spec.md §6's wire framing) and a write mutex, since multiple
// goroutines (the read loop replying to a request, an outbound Send
// call) may write concurrently on the same connection.
type framer struct {
	w      io.Writer
	r      io.Reader
	writeMu sync.Mutex
}

func newFramer(rw io.ReadWriter) *framer {
	return &framer{w: rw, r: rw}
}

func (f *framer) WriteFrame(fr Frame) error {
	body, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("peerlink: marshal frame: %w", err)
	}
	if len(body) > maxFrameBytes {
		return fmt.Errorf("peerlink: frame too large (%d bytes)", len(body))
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if _, err := f.w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = f.w.Write(body)
	return err
}

func (f *framer) ReadFrame() (Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(f.r, prefix[:]); err != nil {
		return Frame{}, err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameBytes {
		return Frame{}, fmt.Errorf("peerlink: incoming frame too large (%d bytes)", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return Frame{}, err
	}
	var fr Frame
	if err := json.Unmarshal(body, &fr); err != nil {
		return Frame{}, fmt.Errorf("peerlink: unmarshal frame: %w", err)
	}
	return fr, nil
}
