// Package ipc is the runtime's local admin/debug surface: a chi-routed
// HTTP+WebSocket API served over a unix domain socket, covering
// ListProcesses, Kill, Spawn and a live Subscribe event stream.
// Grounded on internal/handler/ws/delivery.go and internal/handler/
// lp/delivery.go's channel-to-transport bridging idiom.
package ipc

import (
	"github.com/hearthcore/hearth/internal/process"
	"github.com/hearthcore/hearth/pkg/capability"
)

// ProcessView is the JSON-friendly projection of process.Info served by
// ListProcesses and the ws snapshot stream.
type ProcessView struct {
	ID           string `json:"id"`
	Terminating  bool   `json:"terminating"`
	ExitReason   string `json:"exit_reason,omitempty"`
	MailboxDepth int    `json:"mailbox_depth"`
	Pushed       uint64 `json:"pushed"`
	Dropped      uint64 `json:"dropped"`
	Links        int    `json:"links"`
	Watchers     int    `json:"watchers"`
}

func toView(info process.Info) ProcessView {
	v := ProcessView{
		ID:           info.ID.String(),
		Terminating:  info.Terminating,
		MailboxDepth: info.Mailbox.Depth,
		Pushed:       info.Mailbox.Pushed,
		Dropped:      info.Mailbox.Dropped,
		Links:        info.LinkCount,
		Watchers:     info.WatcherCount,
	}
	if info.ExitReason != nil {
		v.ExitReason = info.ExitReason.Error()
	}
	return v
}

// SpawnRequest asks the runtime to instantiate a guest module already
// present in the lump store under Digest.
type SpawnRequest struct {
	Digest string `json:"digest"`
	Entry  string `json:"entry"`
}

// SpawnResponse returns the freshly minted process's id.
type SpawnResponse struct {
	ID string `json:"id"`
}

// KillRequest names a process to forcibly terminate.
type KillRequest struct {
	ID string `json:"id"`
}

// Spawner is the narrow interface ipc needs from the runtime to service
// SpawnRequest without importing internal/guest or internal/dispatch
// directly.
type Spawner interface {
	SpawnGuest(digestHex, entry string) (capability.ProcessID, error)
}

// Lister is the narrow interface ipc needs to service ListProcesses.
type Lister interface {
	Snapshot() []process.Info
}

// Killer is the narrow interface ipc needs to service Kill. The admin
// surface is inherently privileged — unlike a guest's host calls, it
// acts with full authority over whatever process id it's given rather
// than needing to be handed a capability first.
type Killer interface {
	KillByID(id capability.ProcessID) error
}
