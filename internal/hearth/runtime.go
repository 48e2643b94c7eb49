// Package hearth wires every component — mailboxes, the process table,
// the lump store, the dispatcher, the plugin registry, peer links and
// the local IPC surface — into one explicit Runtime. Grounded on the
// teacher's cmd/fx.go NewApp: same "one struct, built and torn down
// through fx.Lifecycle, nothing implicitly initialized on first access"
// shape, generalized from one HTTP/gRPC/AMQP service to the
// microkernel's own component set (spec.md §9).
package hearth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hearthcore/hearth/config"
	"github.com/hearthcore/hearth/internal/dispatch"
	"github.com/hearthcore/hearth/internal/guest"
	"github.com/hearthcore/hearth/internal/ipc"
	"github.com/hearthcore/hearth/internal/lump"
	"github.com/hearthcore/hearth/internal/mailbox"
	"github.com/hearthcore/hearth/internal/peerlink"
	"github.com/hearthcore/hearth/internal/process"
	"github.com/hearthcore/hearth/internal/registry"
	"github.com/hearthcore/hearth/pkg/capability"
)

// Runtime is the fully assembled microkernel host.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Mailboxes  *mailbox.Set
	Table      *process.Table
	Lumps      *lump.Store
	Dispatcher *dispatch.Dispatcher
	Registry   *registry.Registry
	Peers      *peerlink.Mesh
	IPC        *ipc.Server

	cancel context.CancelFunc
}

// New assembles every component without starting anything — no
// goroutines run, no sockets are bound, until Start is called.
func New(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mailboxes := mailbox.NewSet()
	table := process.NewTable(mailboxes, logger)

	lumps, err := lump.NewStore(cfg.LumpDiskPath, cfg.LumpCacheBytes, lump.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("hearth: lump store: %w", err)
	}

	// The peer mesh needs the lump store to answer incoming LumpRequests,
	// and the store needs the mesh as its Fetcher to satisfy outgoing
	// misses (§4.4) — wiring the mesh in after the store exists and
	// handing it back via SetFetcher breaks that construction cycle.
	peers := peerlink.NewMesh(cfg.PeerID, table, mailboxes, lumps, logger)
	lumps.SetFetcher(peers)

	d := dispatch.New(cfg.DispatchWorkers, cfg.GuestInstructionSlice, cfg.DispatchRatePerSec, cfg.DispatchBurst, logger)
	// A guest trap must run the ordinary termination protocol (§4.1); the
	// dispatcher stays decoupled from internal/process by taking the exit
	// call as a plain function value instead of importing process.Table.
	d.SetTrapHandler(table.Exit)
	reg := registry.New()

	rt := &Runtime{
		Config:     cfg,
		Logger:     logger,
		Mailboxes:  mailboxes,
		Table:      table,
		Lumps:      lumps,
		Dispatcher: d,
		Registry:   reg,
		Peers:      peers,
	}
	rt.IPC = ipc.NewServer(rt, rt, rt, logger)
	return rt, nil
}

// Start runs the dispatcher and the IPC admin surface. Grounded on the
// teacher's urfave/cli "server" subcommand starting its fx.App and
// blocking on signals — here expressed as plain Start/Stop since
// fx.Lifecycle hooks (wired in module.go) call these directly.
func (rt *Runtime) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel

	go func() {
		if err := rt.Dispatcher.Run(runCtx); err != nil {
			rt.Logger.Error("dispatcher stopped", "err", err)
		}
	}()

	if err := rt.Peers.Listen(runCtx, rt.Config.ListenAddress); err != nil {
		cancel()
		return fmt.Errorf("hearth: peer link listen: %w", err)
	}

	if err := rt.IPC.Listen(rt.Config.IPCPath); err != nil {
		cancel()
		return fmt.Errorf("hearth: ipc listen: %w", err)
	}
	go func() {
		if err := rt.IPC.Serve(); err != nil {
			rt.Logger.Debug("ipc server stopped", "err", err)
		}
	}()

	rt.Logger.Info("hearth runtime started", "peer_id", rt.Config.PeerID, "ipc_path", rt.Config.IPCPath)
	return nil
}

// Stop cancels the run context, then closes the dispatcher queue, the
// IPC surface, the peer mesh and the lump store, in that order.
func (rt *Runtime) Stop(ctx context.Context) error {
	if rt.cancel != nil {
		rt.cancel()
	}
	rt.Dispatcher.Close()
	if err := rt.IPC.Shutdown(ctx); err != nil {
		rt.Logger.Warn("ipc shutdown error", "err", err)
	}
	if err := rt.Peers.Close(); err != nil {
		rt.Logger.Warn("peer mesh close error", "err", err)
	}
	if err := rt.Lumps.Close(); err != nil {
		rt.Logger.Warn("lump store close error", "err", err)
	}
	rt.Logger.Info("hearth runtime stopped")
	return nil
}

// Snapshot implements ipc.Lister.
func (rt *Runtime) Snapshot() []process.Info { return rt.Table.Snapshot() }

// KillByID implements ipc.Killer. The admin surface acts with full
// authority, matching spec.md's local IPC trust boundary: anything that
// can reach the unix socket is already as privileged as the daemon's
// operator.
func (rt *Runtime) KillByID(id capability.ProcessID) error {
	return rt.Table.Kill(capability.Root(id))
}

// SpawnGuest implements ipc.Spawner: fetches the named module from the
// lump store and schedules it on the dispatcher.
func (rt *Runtime) SpawnGuest(digestHex, entry string) (capability.ProcessID, error) {
	digest, err := lump.ParseDigest(digestHex)
	if err != nil {
		return capability.ProcessID{}, err
	}
	h, wasmBytes, err := rt.Lumps.Get(context.Background(), digest)
	if err != nil {
		return capability.ProcessID{}, fmt.Errorf("hearth: spawn: fetch module: %w", err)
	}
	defer h.Release()

	p, root := rt.Table.Spawn(mailbox.WithCapacity(rt.Config.MailboxDefaultCapacity))
	deps := guest.Deps{Mailboxes: rt.Mailboxes, Table: rt.Table, Lumps: rt.Lumps, Dispatcher: rt.Dispatcher, Logger: rt.Logger}
	adapter, err := guest.New(context.Background(), root, deps, wasmBytes, entry)
	if err != nil {
		rt.Table.Exit(p.ID, err)
		return capability.ProcessID{}, fmt.Errorf("hearth: spawn: instantiate guest: %w", err)
	}
	rt.Dispatcher.Submit(adapter)
	return p.ID, nil
}
