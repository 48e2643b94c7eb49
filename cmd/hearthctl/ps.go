package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newPSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "list processes known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			views, err := client().ListProcesses(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tMAILBOX\tDROPPED\tLINKS\tWATCHERS\tEXIT")
			for _, v := range views {
				state := color.GreenString("alive")
				if v.Terminating {
					state = color.YellowString("terminating")
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					v.ID, state, v.MailboxDepth, v.Dropped, v.Links, v.Watchers, v.ExitReason)
			}
			return tw.Flush()
		},
	}
}
