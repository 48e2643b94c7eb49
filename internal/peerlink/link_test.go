package peerlink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthcore/hearth/internal/mailbox"
	"github.com/hearthcore/hearth/internal/process"
	"github.com/hearthcore/hearth/pkg/capability"
)

type harness struct {
	tableA, tableB         *process.Table
	mailboxesA, mailboxesB *mailbox.Set
	linkA, linkB           *Link
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ca, cb := net.Pipe()

	h := &harness{
		mailboxesA: mailbox.NewSet(),
		mailboxesB: mailbox.NewSet(),
	}
	h.tableA = process.NewTable(h.mailboxesA, nil)
	h.tableB = process.NewTable(h.mailboxesB, nil)

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		var err error
		h.linkA, err = New(context.Background(), ca, "node-a", h.tableA, h.mailboxesA, nil, nil)
		errCh <- err
		close(done)
	}()
	var err error
	h.linkB, err = New(context.Background(), cb, "node-b", h.tableB, h.mailboxesB, nil, nil)
	require.NoError(t, err)
	<-done
	require.NoError(t, <-errCh)
	return h
}

func TestHelloExchangesPeerID(t *testing.T) {
	h := newHarness(t)
	defer h.linkA.Close()
	defer h.linkB.Close()
	require.Equal(t, "node-b", h.linkA.PeerID())
	require.Equal(t, "node-a", h.linkB.PeerID())
}

func TestSendForwardsAcrossLink(t *testing.T) {
	h := newHarness(t)
	defer h.linkA.Close()
	defer h.linkB.Close()

	// A local process on node B, exported over linkB to node A as
	// handle 0 (the first export on a fresh connection).
	recipient, recipientCap := h.tableB.Spawn()
	handle := h.linkB.exports.export(recipientCap)
	require.Equal(t, uint64(0), handle)

	// Node A imports that handle and sends through the resulting
	// transparent local capability exactly like a local Send.
	imported := h.linkA.ImportRemote(handle, capability.Send)
	shimMB, err := h.mailboxesA.Lookup(imported.Target)
	require.NoError(t, err)

	ok, err := shimMB.Push(context.Background(), mailbox.Envelope{Payload: []byte("hi")})
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := recipient.Mailbox.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg.Envelope)
	require.Equal(t, "hi", string(msg.Envelope.Payload))
}
