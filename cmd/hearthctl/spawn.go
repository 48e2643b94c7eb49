package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSpawnCmd() *cobra.Command {
	var entry string
	cmd := &cobra.Command{
		Use:   "spawn <digest>",
		Short: "spawn a guest process from a lump already in the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			id, err := client().Spawn(ctx, args[0], entry)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().StringVar(&entry, "entry", "main", "guest module entrypoint export name")
	return cmd
}
