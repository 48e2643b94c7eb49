package main

import (
	"context"
	"fmt"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/spf13/cobra"

	"github.com/hearthcore/hearth/internal/ipc"
)

func newTopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "live dashboard of process table activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ui.Init(); err != nil {
				return fmt.Errorf("hearthctl: init terminal ui: %w", err)
			}
			defer ui.Close()

			table := widgets.NewTable()
			table.Title = "hearth processes"
			table.Rows = [][]string{{"ID", "STATE", "MAILBOX", "DROPPED", "LINKS", "WATCHERS"}}
			table.RowSeparator = false
			table.FillRow = true
			w, h := ui.TerminalDimensions()
			table.SetRect(0, 0, w, h)
			ui.Render(table)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				errCh <- client().Watch(ctx, socketPath, func(views []ipc.ProcessView) {
					rows := [][]string{{"ID", "STATE", "MAILBOX", "DROPPED", "LINKS", "WATCHERS"}}
					for _, v := range views {
						state := "alive"
						if v.Terminating {
							state = "terminating"
						}
						rows = append(rows, []string{
							v.ID, state,
							fmt.Sprintf("%d", v.MailboxDepth),
							fmt.Sprintf("%d", v.Dropped),
							fmt.Sprintf("%d", v.Links),
							fmt.Sprintf("%d", v.Watchers),
						})
					}
					table.Rows = rows
					ui.Render(table)
				})
			}()

			uiEvents := ui.PollEvents()
			for {
				select {
				case e := <-uiEvents:
					switch e.ID {
					case "q", "<C-c>":
						cancel()
						return nil
					case "<Resize>":
						w, h := ui.TerminalDimensions()
						table.SetRect(0, 0, w, h)
						ui.Render(table)
					}
				case err := <-errCh:
					return err
				}
			}
		},
	}
}
