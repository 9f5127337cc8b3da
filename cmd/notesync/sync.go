package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push notes written offline to the service",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		rt := openRuntime(ctx)
		defer rt.Close()

		pending := len(rt.Engine.PendingOffline())
		if pending == 0 {
			fmt.Println("Nothing to sync")
			return
		}

		res, err := rt.Engine.SyncOffline(ctx)
		if err != nil {
			fatal("Failed to sync", err)
		}
		if err := rt.Engine.FlushCache(ctx); err != nil {
			fatal("Failed to flush cache", err)
		}

		fmt.Printf("Synced %d of %d\n", len(res.Synced), pending)
		failed := make([]int64, 0, len(res.Failed))
		for id := range res.Failed {
			failed = append(failed, id)
		}
		slices.Sort(failed)
		for _, id := range failed {
			fmt.Printf("  %d: %v\n", id, res.Failed[id])
		}
		if len(failed) > 0 {
			fatal("Some notes are still queued", fmt.Errorf("%d failed", len(failed)))
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
