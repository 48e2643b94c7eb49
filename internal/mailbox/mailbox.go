package mailbox

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hearthcore/hearth/pkg/capability"
)

// state is a mailbox's monotone open->closed lifecycle. Grounded on the
// teacher's Cell, whose doneCh close is likewise a one-way transition.
type state int32

const (
	stateOpen state = iota
	stateClosed
)

// Policy selects what Push does when the queue is at capacity. The
// default, bounded-drop, mirrors Cell.Push's "drop on full, protect
// system stability" behavior. Bounded-block is opt-in per mailbox.
type Policy int

const (
	PolicyDrop Policy = iota
	PolicyBlock
)

// Option configures a Mailbox at construction.
type Option func(*Mailbox)

// WithCapacity sets the bounded queue depth for ordinary envelopes.
// Signals are never subject to this bound.
func WithCapacity(n int) Option {
	return func(m *Mailbox) { m.capacity = n }
}

// WithBlocking switches the backpressure policy from drop to block.
func WithBlocking() Option {
	return func(m *Mailbox) { m.policy = PolicyBlock }
}

const defaultCapacity = 256

// Mailbox is a single process's FIFO queue of envelopes and signals. It
// is the receive-side half of spec.md's process model; Table (internal/
// process) owns the send-side routing that decides which mailbox a given
// envelope or signal lands in.
//
// Grounded directly on internal/domain/registry/cell.go: a channel-backed
// actor mailbox with batch draining, generalized from a linked-list queue
// so that signals can always be enqueued regardless of the envelope
// backpressure policy.
type Mailbox struct {
	Owner capability.ProcessID

	capacity int
	policy   Policy

	mu     sync.Mutex
	queue  list.List // of Message
	wake   chan struct{}
	notFull chan struct{}
	state  atomic.Int32

	dropCount  atomic.Uint64
	pushCount  atomic.Uint64
}

// New constructs an open mailbox for owner.
func New(owner capability.ProcessID, opts ...Option) *Mailbox {
	m := &Mailbox{
		Owner:    owner,
		capacity: defaultCapacity,
		wake:     make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mailbox) isClosed() bool { return state(m.state.Load()) == stateClosed }

// envelopeLen counts only envelopes toward the capacity bound; signals
// are unbounded and excluded.
func (m *Mailbox) envelopeLen() int {
	n := 0
	for e := m.queue.Front(); e != nil; e = e.Next() {
		if e.Value.(Message).Envelope != nil {
			n++
		}
	}
	return n
}

func (m *Mailbox) wakeup(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Push enqueues an ordinary envelope. Under PolicyDrop, a full mailbox
// silently drops the envelope and Push returns (false, nil). Under
// PolicyBlock, Push waits until capacity frees up or ctx is cancelled.
func (m *Mailbox) Push(ctx context.Context, env Envelope) (delivered bool, err error) {
	m.pushCount.Add(1)
	for {
		m.mu.Lock()
		if m.isClosed() {
			m.mu.Unlock()
			return false, ErrClosed
		}
		if m.envelopeLen() < m.capacity {
			m.queue.PushBack(fromEnvelope(env))
			m.mu.Unlock()
			m.wakeup(m.wake)
			return true, nil
		}
		m.mu.Unlock()

		if m.policy == PolicyDrop {
			m.dropCount.Add(1)
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-m.notFull:
		}
	}
}

// PushSignal unconditionally enqueues a signal, bypassing the envelope
// backpressure policy entirely. Monitor/link contracts are exactly-once
// and must never be dropped for capacity reasons.
func (m *Mailbox) PushSignal(sig Signal) error {
	m.mu.Lock()
	if m.isClosed() {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue.PushBack(fromSignal(sig))
	m.mu.Unlock()
	m.wakeup(m.wake)
	return nil
}

// Receive blocks until a message is available, the mailbox closes, or ctx
// is cancelled.
func (m *Mailbox) Receive(ctx context.Context) (Message, error) {
	for {
		m.mu.Lock()
		if front := m.queue.Front(); front != nil {
			msg := m.queue.Remove(front).(Message)
			m.mu.Unlock()
			m.wakeup(m.notFull)
			return msg, nil
		}
		closed := m.isClosed()
		m.mu.Unlock()
		if closed {
			return Message{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-m.wake:
		}
	}
}

// TryReceive is Receive's non-blocking counterpart, used by the guest
// adapter's recv host call so a guest polls its mailbox without parking
// a worker goroutine.
func (m *Mailbox) TryReceive() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	front := m.queue.Front()
	if front == nil {
		return Message{}, false
	}
	msg := m.queue.Remove(front).(Message)
	return msg, true
}

// Close transitions the mailbox to closed. Any blocked or future Push
// observes ErrClosed; Receive keeps returning already-queued messages
// and returns ErrClosed once the queue is empty. Close is idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.isClosed() {
		m.mu.Unlock()
		return
	}
	m.state.Store(int32(stateClosed))
	m.mu.Unlock()
	m.wakeup(m.wake)
	m.wakeup(m.notFull)
}

// Stats reports lifetime counters used by the IPC introspection surface.
type Stats struct {
	Pushed  uint64
	Dropped uint64
	Depth   int
}

func (m *Mailbox) Stats() Stats {
	m.mu.Lock()
	depth := m.envelopeLen()
	m.mu.Unlock()
	return Stats{
		Pushed:  m.pushCount.Load(),
		Dropped: m.dropCount.Load(),
		Depth:   depth,
	}
}
