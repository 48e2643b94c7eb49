package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthcore/hearth/internal/mailbox"
	"github.com/hearthcore/hearth/pkg/capability"
)

func newTestTable() *Table {
	return NewTable(mailbox.NewSet(), nil)
}

func TestSpawnGrantsRootCapability(t *testing.T) {
	tbl := newTestTable()
	p, cap := tbl.Spawn()
	require.Equal(t, p.ID, cap.Target)
	require.True(t, cap.Allows(capability.OpKill))
}

func TestMonitorFiresDownExactlyOnce(t *testing.T) {
	tbl := newTestTable()
	watcher, _ := tbl.Spawn()
	_, targetCap := tbl.Spawn()

	_, err := tbl.Monitor(watcher.ID, targetCap)
	require.NoError(t, err)

	require.NoError(t, tbl.Exit(targetCap.Target, ErrKilled))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := watcher.Mailbox.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg.Signal)
	require.Equal(t, mailbox.SignalDown, msg.Signal.Kind)
	require.Equal(t, targetCap.Target, msg.Signal.Target)

	// No second Down should ever arrive.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err = watcher.Mailbox.Receive(ctx2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLinkCoTerminatesBothDirections(t *testing.T) {
	tbl := newTestTable()
	a, aCap := tbl.Spawn()
	b, bCap := tbl.Spawn()

	require.NoError(t, tbl.Link(a.ID, bCap))
	require.NoError(t, tbl.Link(b.ID, aCap))

	require.NoError(t, tbl.Exit(a.ID, nil))

	require.True(t, a.IsTerminating())
	require.True(t, b.IsTerminating())
	require.ErrorIs(t, b.ExitReason(), ErrLinkedExit)
}

func TestKillRequiresKillPermission(t *testing.T) {
	tbl := newTestTable()
	_, targetCap := tbl.Spawn()
	narrowed := targetCap.Narrow(capability.Send)

	err := tbl.Kill(narrowed)
	require.Error(t, err)
	var permErr *capability.PermissionError
	require.ErrorAs(t, err, &permErr)
}

func TestDoubleTerminationIsRejected(t *testing.T) {
	tbl := newTestTable()
	p, _ := tbl.Spawn()

	require.NoError(t, tbl.Exit(p.ID, nil))
	err := tbl.Exit(p.ID, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotReflectsLiveProcesses(t *testing.T) {
	tbl := newTestTable()
	tbl.Spawn()
	tbl.Spawn()
	require.Len(t, tbl.Snapshot(), 2)
	require.Equal(t, 2, tbl.Len())
}
