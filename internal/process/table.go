package process

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hearthcore/hearth/internal/mailbox"
	"github.com/hearthcore/hearth/pkg/capability"
)

// MonitorRef identifies one monitor subscription, returned by Monitor and
// consumed by Demonitor. Mirrors Erlang's monitor reference: a watcher
// may hold several independent monitors on the same target.
type MonitorRef uuid.UUID

func newMonitorRef() MonitorRef { return MonitorRef(uuid.New()) }

// Table is the runtime's process registry and supervision graph. Links
// are stored as a symmetric adjacency set; monitors as a directed
// target -> (ref -> watcher) set. Grounded on Hub's sync.Map cell
// registry, generalized with the explicit link/monitor bookkeeping
// spec.md's termination protocol needs and that the teacher's flat actor
// hub has no analogue for.
type Table struct {
	mailboxes *mailbox.Set
	logger    *slog.Logger

	mu             sync.RWMutex
	processes      map[capability.ProcessID]*Process
	links          map[capability.ProcessID]map[capability.ProcessID]struct{}
	watchers       map[capability.ProcessID]map[MonitorRef]capability.ProcessID
	monitorTargets map[MonitorRef]capability.ProcessID
}

func NewTable(mailboxes *mailbox.Set, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		mailboxes:      mailboxes,
		logger:         logger,
		processes:      make(map[capability.ProcessID]*Process),
		links:          make(map[capability.ProcessID]map[capability.ProcessID]struct{}),
		watchers:       make(map[capability.ProcessID]map[MonitorRef]capability.ProcessID),
		monitorTargets: make(map[MonitorRef]capability.ProcessID),
	}
}

// Spawn registers a new process with its own mailbox and returns it
// along with the unrestricted root capability minted for it.
func (t *Table) Spawn(opts ...mailbox.Option) (*Process, capability.Capability) {
	id := capability.NewProcessID()
	mb := t.mailboxes.Create(id, opts...)
	p := newProcess(id, mb)

	t.mu.Lock()
	t.processes[id] = p
	t.links[id] = make(map[capability.ProcessID]struct{})
	t.watchers[id] = make(map[MonitorRef]capability.ProcessID)
	t.mu.Unlock()

	t.logger.Debug("process spawned", "process", id.String())
	return p, capability.Root(id)
}

func (t *Table) get(id capability.ProcessID) (*Process, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.processes[id]
	return p, ok
}

// Lookup returns the live process for id.
func (t *Table) Lookup(id capability.ProcessID) (*Process, error) {
	p, ok := t.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Link establishes a bidirectional co-termination link between self and
// the process target identifies, provided target grants Link.
func (t *Table) Link(self capability.ProcessID, target capability.Capability) error {
	if err := target.CheckErr(capability.OpLink); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.processes[self]; !ok {
		return ErrNotFound
	}
	if _, ok := t.processes[target.Target]; !ok {
		return ErrNotFound
	}
	t.links[self][target.Target] = struct{}{}
	t.links[target.Target][self] = struct{}{}
	return nil
}

// Unlink removes a previously established link, if any. Idempotent.
func (t *Table) Unlink(self capability.ProcessID, target capability.Capability) error {
	if err := target.CheckErr(capability.OpUnlink); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if peers, ok := t.links[self]; ok {
		delete(peers, target.Target)
	}
	if peers, ok := t.links[target.Target]; ok {
		delete(peers, self)
	}
	return nil
}

// Monitor subscribes watcher for a one-shot Down signal when target
// exits, provided target grants Monitor. Returns a ref for Demonitor. If
// target has already exited (or never existed under this table, e.g. a
// peer-imported shim already torn down), a Down is enqueued for watcher
// immediately instead of failing: monitor on an already-closed mailbox is
// equivalent to monitor+close, per the round-trip law in spec.md §8.
func (t *Table) Monitor(watcher capability.ProcessID, target capability.Capability) (MonitorRef, error) {
	if err := target.CheckErr(capability.OpMonitor); err != nil {
		return MonitorRef{}, err
	}
	t.mu.Lock()
	if _, ok := t.processes[target.Target]; !ok {
		t.mu.Unlock()
		ref := newMonitorRef()
		if mb, err := t.mailboxes.Lookup(watcher); err == nil {
			mb.PushSignal(mailbox.Signal{Kind: mailbox.SignalDown, Target: target.Target, Reason: ErrNotFound})
		}
		return ref, nil
	}
	defer t.mu.Unlock()
	ref := newMonitorRef()
	t.watchers[target.Target][ref] = watcher
	t.monitorTargets[ref] = target.Target
	return ref, nil
}

// Demonitor cancels a previously established monitor. Idempotent.
func (t *Table) Demonitor(ref MonitorRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	target, ok := t.monitorTargets[ref]
	if !ok {
		return nil
	}
	delete(t.monitorTargets, ref)
	if watchers, ok := t.watchers[target]; ok {
		delete(watchers, ref)
	}
	return nil
}

// Exit begins the termination protocol for id with the given reason.
func (t *Table) Exit(id capability.ProcessID, reason error) error {
	return t.terminate(id, reason)
}

// Kill forces termination of the process target identifies, provided
// target grants Kill.
func (t *Table) Kill(target capability.Capability) error {
	if err := target.CheckErr(capability.OpKill); err != nil {
		return err
	}
	return t.terminate(target.Target, ErrKilled)
}

func (t *Table) terminate(id capability.ProcessID, reason error) error {
	p, ok := t.get(id)
	if !ok {
		return ErrNotFound
	}
	if !p.markTerminating() {
		return ErrAlreadyTerminating
	}
	return t.cascade(p, reason)
}

// cascade runs the five-step termination protocol for an already
// terminating-marked process: (1) detach it from the supervision graph
// under lock, (2) record the exit reason, (3) close and reap its
// mailbox, (4) fire a Down signal at every watcher, (5) co-terminate
// every still-linked peer. Steps 4 and 5 fan out concurrently via
// errgroup; a peer already mid-termination (its own markTerminating
// already flipped) is skipped rather than double-cascaded.
func (t *Table) cascade(p *Process, reason error) error {
	id := p.ID

	t.mu.Lock()
	linkedPeers := make([]capability.ProcessID, 0, len(t.links[id]))
	for peer := range t.links[id] {
		linkedPeers = append(linkedPeers, peer)
	}
	watcherIDs := make([]capability.ProcessID, 0, len(t.watchers[id]))
	for ref, w := range t.watchers[id] {
		watcherIDs = append(watcherIDs, w)
		delete(t.monitorTargets, ref)
	}
	delete(t.processes, id)
	delete(t.links, id)
	for _, peer := range linkedPeers {
		if peers, ok := t.links[peer]; ok {
			delete(peers, id)
		}
	}
	delete(t.watchers, id)
	t.mu.Unlock()

	p.setExitReason(reason)
	t.mailboxes.Remove(id)

	var g errgroup.Group
	for _, watcher := range watcherIDs {
		watcher := watcher
		g.Go(func() error {
			mb, err := t.mailboxes.Lookup(watcher)
			if err != nil {
				return nil // watcher already reaped, nothing to signal
			}
			return mb.PushSignal(mailbox.Signal{Kind: mailbox.SignalDown, Target: id, Reason: reason})
		})
	}
	for _, peer := range linkedPeers {
		peerP, ok := t.get(peer)
		if !ok || !peerP.markTerminating() {
			continue
		}
		peerP := peerP
		g.Go(func() error { return t.cascade(peerP, ErrLinkedExit) })
	}
	return g.Wait()
}

// Snapshot returns a point-in-time view of every live process, used by
// the IPC ListProcesses operation.
func (t *Table) Snapshot() []Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Info, 0, len(t.processes))
	for id, p := range t.processes {
		out = append(out, Info{
			ID:           id,
			Terminating:  p.IsTerminating(),
			ExitReason:   p.ExitReason(),
			Mailbox:      p.Mailbox.Stats(),
			LinkCount:    len(t.links[id]),
			WatcherCount: len(t.watchers[id]),
		})
	}
	return out
}

// Len reports the number of live processes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.processes)
}
