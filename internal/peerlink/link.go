package peerlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/hearthcore/hearth/internal/lump"
	"github.com/hearthcore/hearth/internal/mailbox"
	"github.com/hearthcore/hearth/internal/process"
	"github.com/hearthcore/hearth/pkg/capability"
)

// Link manages one peer connection: the framed read loop, the
// export/import handle tables, and the shim processes that make remote
// targets transparently addressable through the ordinary process.Table/
// mailbox.Set machinery. Grounded on zombiezen.com/go/capnproto2/rpc's
// Conn for the table shape; the reconnect/circuit-break posture and
// one-queue-per-node framing come from the teacher's AMQP handler.
type Link struct {
	conn   net.Conn
	framer *framer

	localPeerID  string
	remotePeerID string

	table     *process.Table
	mailboxes *mailbox.Set
	lumps     *lump.Store
	logger    *slog.Logger

	exports *exportTable
	imports *importTable
	breaker *gobreaker.CircuitBreaker

	pendingMu sync.Mutex
	pending   map[string]chan Frame // digest hex -> reply channel

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps an already-dialed/accepted connection and performs the
// Hello handshake.
func New(ctx context.Context, conn net.Conn, localPeerID string, table *process.Table, mailboxes *mailbox.Set, lumps *lump.Store, logger *slog.Logger) (*Link, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Link{
		conn:        conn,
		framer:      newFramer(conn),
		localPeerID: localPeerID,
		table:       table,
		mailboxes:   mailboxes,
		lumps:       lumps,
		logger:      logger,
		exports:     newExportTable(),
		imports:     newImportTable(),
		breaker:     newFetchBreaker(conn.RemoteAddr().String()),
		pending:     make(map[string]chan Frame),
		closed:      make(chan struct{}),
	}

	// Send our Hello while reading the peer's, so the handshake does not
	// depend on the connection buffering a write nobody is reading yet.
	helloErr := make(chan error, 1)
	go func() { helloErr <- l.framer.WriteFrame(Frame{Op: OpHello, PeerID: localPeerID}) }()
	hello, err := l.framer.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("peerlink: awaiting hello: %w", err)
	}
	if err := <-helloErr; err != nil {
		return nil, fmt.Errorf("peerlink: hello: %w", err)
	}
	if hello.Op != OpHello {
		return nil, fmt.Errorf("peerlink: expected hello, got %s", hello.Op)
	}
	l.remotePeerID = hello.PeerID

	go l.readLoop()
	return l, nil
}

// ImportRemote makes the process the peer exported under handle
// addressable as an ordinary local capability: a shim process is
// spawned once per handle and its outbound mailbox traffic is forwarded
// to the peer as Send frames.
func (l *Link) ImportRemote(handle uint64, perms capability.Permission) capability.Capability {
	if shimID, ok := l.imports.get(handle); ok {
		return capability.Capability{Target: shimID, Perms: perms}
	}
	shim, root := l.table.Spawn()
	l.imports.put(handle, shim.ID)
	go l.forward(shim, handle)
	return root.Narrow(perms)
}

// forward drains a shim's mailbox for the lifetime of the process and
// puts every envelope on the wire as a Send frame targeting handle.
func (l *Link) forward(shim *process.Process, handle uint64) {
	ctx := context.Background()
	for {
		msg, err := shim.Mailbox.Receive(ctx)
		if err != nil {
			return // shim closed: either PeerGone teardown or a local kill
		}
		if msg.Envelope == nil {
			continue // signals on a shim have nowhere further to go
		}
		caps := make([]uint64, 0, len(msg.Envelope.Caps))
		for _, c := range msg.Envelope.Caps {
			caps = append(caps, l.exportAndWatch(c))
		}
		if err := l.framer.WriteFrame(Frame{
			Op:      OpSend,
			Handle:  handle,
			Payload: msg.Envelope.Payload,
			Caps:    caps,
		}); err != nil {
			l.logger.Warn("peerlink: forward send failed", "peer", l.remotePeerID, "err", err)
			return
		}
	}
}

// exportAndWatch exports cap and arranges for an OpClose to be sent to
// the peer the moment the local process it names exits, by riding the
// same Monitor/cascade machinery any ordinary local watcher uses.
func (l *Link) exportAndWatch(c capability.Capability) uint64 {
	handle := l.exports.export(c)
	watcher, _ := l.table.Spawn()
	ref, err := l.table.Monitor(watcher.ID, c)
	if err != nil {
		l.table.Exit(watcher.ID, nil)
		return handle
	}
	go func() {
		msg, err := watcher.Mailbox.Receive(context.Background())
		_ = ref
		l.exports.revoke(c.Target)
		l.table.Exit(watcher.ID, nil)
		if err != nil || msg.Signal == nil {
			return
		}
		reason := ""
		if msg.Signal.Reason != nil {
			reason = msg.Signal.Reason.Error()
		}
		l.framer.WriteFrame(Frame{Op: OpClose, Handle: handle, Reason: reason})
	}()
	return handle
}

// FetchLump implements lump.Fetcher by round-tripping an OpLumpRequest
// through the circuit breaker.
func (l *Link) FetchLump(ctx context.Context, digest lump.Digest) ([]byte, error) {
	v, err := l.breaker.Execute(func() (any, error) {
		key := digest.String()
		reply := make(chan Frame, 1)
		l.pendingMu.Lock()
		l.pending[key] = reply
		l.pendingMu.Unlock()
		defer func() {
			l.pendingMu.Lock()
			delete(l.pending, key)
			l.pendingMu.Unlock()
		}()

		if err := l.framer.WriteFrame(Frame{Op: OpLumpRequest, Digest: key}); err != nil {
			return nil, err
		}
		select {
		case fr := <-reply:
			if !fr.Found {
				return nil, lump.ErrNotFound
			}
			return fr.Data, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.closed:
			return nil, ErrPeerGone
		}
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (l *Link) readLoop() {
	defer l.teardown()
	for {
		fr, err := l.framer.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.logger.Warn("peerlink: read loop error", "peer", l.remotePeerID, "err", err)
			}
			return
		}
		l.dispatch(fr)
	}
}

func (l *Link) dispatch(fr Frame) {
	switch fr.Op {
	case OpSend:
		l.handleSend(fr)
	case OpClose:
		l.handleClose(fr)
	case OpLumpRequest:
		l.handleLumpRequest(fr)
	case OpLumpReply:
		l.handleLumpReply(fr)
	default:
		l.logger.Warn("peerlink: unhandled op", "op", fr.Op)
	}
}

func (l *Link) handleSend(fr Frame) {
	c, ok := l.exports.resolve(fr.Handle)
	if !ok {
		return // exported process already gone; drop silently, matches local Send-to-gone semantics
	}
	mb, err := l.mailboxes.Lookup(c.Target)
	if err != nil {
		return
	}
	caps := make([]capability.Capability, 0, len(fr.Caps))
	for _, h := range fr.Caps {
		caps = append(caps, l.ImportRemote(h, capability.All))
	}
	mb.Push(context.Background(), mailbox.Envelope{Payload: fr.Payload, Caps: caps})
}

func (l *Link) handleClose(fr Frame) {
	shimID, ok := l.imports.remove(fr.Handle)
	if !ok {
		return
	}
	reason := ErrPeerGone
	if fr.Reason != "" {
		reason = fmt.Errorf("peerlink: remote exit: %s", fr.Reason)
	}
	l.table.Exit(shimID, reason)
}

func (l *Link) handleLumpRequest(fr Frame) {
	digest, err := lump.ParseDigest(fr.Digest)
	if err != nil {
		return
	}
	h, data, err := l.lumps.Get(context.Background(), digest)
	if err != nil {
		l.framer.WriteFrame(Frame{Op: OpLumpReply, Digest: fr.Digest, Found: false})
		return
	}
	defer h.Release()
	l.framer.WriteFrame(Frame{Op: OpLumpReply, Digest: fr.Digest, Data: data, Found: true})
}

func (l *Link) handleLumpReply(fr Frame) {
	l.pendingMu.Lock()
	ch, ok := l.pending[fr.Digest]
	l.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- fr:
	default:
	}
}

// teardown runs once, on connection loss: every shim imported over this
// link is exited with ErrPeerGone in one atomic sweep, so a caller never
// observes a half-dead remote reference.
func (l *Link) teardown() {
	l.closeOnce.Do(func() {
		close(l.closed)
		for _, shim := range l.imports.all() {
			l.table.Exit(shim, ErrPeerGone)
		}
		l.conn.Close()
	})
}

// Close shuts the connection down deliberately.
func (l *Link) Close() error {
	l.teardown()
	return nil
}

// PeerID returns the remote side's advertised identity from the Hello
// handshake.
func (l *Link) PeerID() string { return l.remotePeerID }

// Done reports when this link has torn down, so callers tracking a
// collection of links (internal/peerlink.Mesh) know when to forget it.
func (l *Link) Done() <-chan struct{} { return l.closed }

var _ lump.Fetcher = (*Link)(nil)
