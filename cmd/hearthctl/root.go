// Command hearthctl is the operator CLI: ps/kill/spawn against a
// running hearthd's IPC surface, plus a live termui dashboard (top).
// Grounded on gravwell-gravwell's gwcli (a cobra-based operator CLI
// alongside its library module) and the teacher's own gizak/termui/v3
// dependency, otherwise unused by the teacher's own HTTP/gRPC/AMQP
// surfaces.
package main

import (
	"github.com/spf13/cobra"

	"github.com/hearthcore/hearth/internal/ipc"
)

var socketPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hearthctl",
		Short: "operator CLI for a running hearth daemon",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", "/tmp/hearth.sock", "path to the hearthd admin unix socket")

	root.AddCommand(newPSCmd())
	root.AddCommand(newKillCmd())
	root.AddCommand(newSpawnCmd())
	root.AddCommand(newTopCmd())
	return root
}

func client() *ipc.Client { return ipc.NewClient(socketPath) }
