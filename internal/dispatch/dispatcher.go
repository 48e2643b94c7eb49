package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/hearthcore/hearth/pkg/capability"
)

const defaultQueueDepth = 1024

// Dispatcher is the runtime's worker pool. Each worker repeatedly pulls a
// Task off the ready queue, waits for a fairness token, runs one
// instruction-metered slice, and — if the task reports more work left —
// re-enqueues it at the back of the queue, so no single busy process can
// starve the others. Grounded on sourcegraph/conc's structured
// worker-pool idiom (no teacher analogue — the teacher has no scheduler,
// only a pub/sub fan-out).
type Dispatcher struct {
	pool    *pool.ContextPool
	workers int
	limiter *rate.Limiter
	slice   int
	logger  *slog.Logger

	mu          sync.Mutex
	queue       chan Task
	killed      map[capability.ProcessID]struct{}
	trapHandler func(id capability.ProcessID, reason error) error
}

// New constructs a Dispatcher with workers concurrent slots, each slice
// metered at sliceInstructions, and a fairness token bucket replenishing
// at ratePerSec with the given burst.
func New(workers, sliceInstructions int, ratePerSec float64, burst int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pool:    pool.New().WithMaxGoroutines(workers).WithContext(context.Background()),
		workers: workers,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		slice:   sliceInstructions,
		logger:  logger,
		queue:   make(chan Task, defaultQueueDepth),
		killed:  make(map[capability.ProcessID]struct{}),
	}
}

// Submit enqueues task to run. Submit never blocks forever: if the queue
// is momentarily full it blocks the caller until a slot frees, mirroring
// ordinary channel-send backpressure.
func (d *Dispatcher) Submit(task Task) {
	d.queue <- task
}

// Drop marks a process's tasks as dead; any already-queued slice for it
// is skipped rather than executed, used when Kill/Exit races a pending
// reschedule.
func (d *Dispatcher) Drop(id capability.ProcessID) {
	d.mu.Lock()
	d.killed[id] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) isDropped(id capability.ProcessID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.killed[id]
	return ok
}

// SetTrapHandler registers the callback invoked when a task's slice
// returns an error — in practice, internal/guest reporting a WASM trap.
// The dispatcher itself never imports internal/process; routing the
// reason into the termination protocol (§4.1) is the handler's job, kept
// a plain function value so this package stays decoupled from process.Table.
func (d *Dispatcher) SetTrapHandler(h func(id capability.ProcessID, reason error) error) {
	d.mu.Lock()
	d.trapHandler = h
	d.mu.Unlock()
}

// Run starts the configured number of workers, each looping until ctx is
// cancelled or the queue is closed. Run blocks until every worker exits.
func (d *Dispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.workers; i++ {
		d.pool.Go(func(context.Context) error {
			return d.worker(ctx)
		})
	}
	return d.pool.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case task, ok := <-d.queue:
			if !ok {
				return nil
			}
			d.runOne(ctx, task)
		}
	}
}

func (d *Dispatcher) runOne(ctx context.Context, task Task) {
	if d.isDropped(task.ID()) {
		return
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return
	}
	consumed, more, err := task.RunSlice(ctx, d.slice)
	if err != nil {
		d.logger.Warn("task slice trapped", "process", task.ID().String(), "err", err)
		d.mu.Lock()
		h := d.trapHandler
		d.mu.Unlock()
		if h != nil {
			if exitErr := h(task.ID(), err); exitErr != nil {
				d.logger.Debug("trap exit", "process", task.ID().String(), "err", exitErr)
			}
		}
		return
	}
	d.logger.Debug("ran slice", "process", task.ID().String(), "consumed", consumed, "more", more)
	if more && !d.isDropped(task.ID()) {
		// Re-enqueue from a separate goroutine so a full queue never
		// deadlocks a worker against itself.
		go func() { d.Submit(task) }()
	}
}

// Close closes the ready queue. A worker returns once it receives from
// the closed, empty queue or sees Run's context done, whichever it
// observes first, so tasks still queued at cancellation may not run.
// Submit after Close panics.
func (d *Dispatcher) Close() {
	close(d.queue)
}
