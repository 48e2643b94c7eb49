package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/hearthcore/hearth/pkg/capability"
	"github.com/stretchr/testify/require"
)

func TestPushReceiveFIFO(t *testing.T) {
	m := New(capability.NewProcessID(), WithCapacity(8))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := m.Push(ctx, Envelope{Payload: []byte{byte(i)}})
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := 0; i < 5; i++ {
		msg, err := m.Receive(ctx)
		require.NoError(t, err)
		require.NotNil(t, msg.Envelope)
		require.Equal(t, byte(i), msg.Envelope.Payload[0])
	}
}

func TestDropPolicyDropsWhenFull(t *testing.T) {
	m := New(capability.NewProcessID(), WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := m.Push(ctx, Envelope{})
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := m.Push(ctx, Envelope{})
	require.NoError(t, err)
	require.False(t, ok, "third push must be dropped under PolicyDrop")
	require.Equal(t, uint64(1), m.Stats().Dropped)
}

func TestBlockingPolicyUnblocksOnReceive(t *testing.T) {
	m := New(capability.NewProcessID(), WithCapacity(1), WithBlocking())
	ctx := context.Background()

	ok, err := m.Push(ctx, Envelope{Payload: []byte("first")})
	require.NoError(t, err)
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ok, err := m.Push(ctx, Envelope{Payload: []byte("second")})
		require.NoError(t, err)
		require.True(t, ok)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("blocking push returned before capacity freed up")
	default:
	}

	_, err = m.Receive(ctx)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocking push never unblocked after Receive freed capacity")
	}
}

func TestSignalsBypassBackpressure(t *testing.T) {
	m := New(capability.NewProcessID(), WithCapacity(1))
	ctx := context.Background()

	ok, err := m.Push(ctx, Envelope{})
	require.NoError(t, err)
	require.True(t, ok)

	target := capability.NewProcessID()
	require.NoError(t, m.PushSignal(Signal{Kind: SignalDown, Target: target}))

	msg, err := m.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg.Envelope, "envelope pushed first must be received first")

	msg, err = m.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg.Signal)
	require.Equal(t, SignalDown, msg.Signal.Kind)
	require.Equal(t, target, msg.Signal.Target)
}

func TestCloseIsMonotoneAndIdempotent(t *testing.T) {
	m := New(capability.NewProcessID())
	m.Close()
	m.Close() // must not panic

	_, err := m.Push(context.Background(), Envelope{})
	require.ErrorIs(t, err, ErrClosed)

	_, err = m.Receive(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
