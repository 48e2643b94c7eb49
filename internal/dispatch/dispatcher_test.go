package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthcore/hearth/pkg/capability"
)

type countingTask struct {
	id       capability.ProcessID
	remaining atomic.Int32
	runs     atomic.Int32
	done     chan struct{}
}

func newCountingTask(slices int) *countingTask {
	t := &countingTask{id: capability.NewProcessID(), done: make(chan struct{})}
	t.remaining.Store(int32(slices))
	return t
}

func (t *countingTask) ID() capability.ProcessID { return t.id }

func (t *countingTask) RunSlice(ctx context.Context, budget int) (int, bool, error) {
	t.runs.Add(1)
	left := t.remaining.Add(-1)
	if left <= 0 {
		close(t.done)
		return budget, false, nil
	}
	return budget, true, nil
}

func TestDispatcherRunsSlicesUntilDone(t *testing.T) {
	d := New(2, 1000, 1000, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)

	task := newCountingTask(5)
	d.Submit(task)

	select {
	case <-task.done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never completed its slices")
	}
	require.Equal(t, int32(5), task.runs.Load())
}

func TestDroppedTaskIsSkipped(t *testing.T) {
	d := New(1, 1000, 1000, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	task := newCountingTask(1)
	d.Drop(task.ID())
	d.Submit(task)

	select {
	case <-task.done:
		t.Fatal("dropped task must not run")
	case <-time.After(100 * time.Millisecond):
	}
}
