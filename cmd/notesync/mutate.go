package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
)

var (
	rmPermanent bool
	pinOff      bool
)

// batchCommand builds a command applying one engine batch write to the
// ids given as arguments.
func batchCommand(use, short string, op func(ctx context.Context, e *notesync.Engine, ids []int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ids, err := parseIDs(args)
			if err != nil {
				fatal("Invalid arguments", err)
			}

			ctx := cmd.Context()
			rt := openRuntime(ctx)
			defer rt.Close()
			rt.Engine.ColdStart(ctx)

			if err := op(ctx, rt.Engine, ids); err != nil {
				fatal(fmt.Sprintf("Failed to %s notes", use), err)
			}
		},
	}
}

var archiveCmd = batchCommand("archive", "Move notes to the archive",
	func(ctx context.Context, e *notesync.Engine, ids []int64) error { return e.ArchiveNotes(ctx, ids...) })

var unarchiveCmd = batchCommand("unarchive", "Move notes out of the archive",
	func(ctx context.Context, e *notesync.Engine, ids []int64) error { return e.UnarchiveNotes(ctx, ids...) })

var restoreCmd = batchCommand("restore", "Restore notes from the trash",
	func(ctx context.Context, e *notesync.Engine, ids []int64) error { return e.RestoreNotes(ctx, ids...) })

var pinCmd = batchCommand("pin", "Pin notes to the top of their views",
	func(ctx context.Context, e *notesync.Engine, ids []int64) error { return e.PinNotes(ctx, !pinOff, ids...) })

var rmCmd = batchCommand("rm", "Move notes to the trash, or delete them with --permanent",
	func(ctx context.Context, e *notesync.Engine, ids []int64) error {
		if rmPermanent {
			return e.DeleteNotes(ctx, ids...)
		}
		return e.TrashNotes(ctx, ids...)
	})

func init() {
	rootCmd.AddCommand(archiveCmd, unarchiveCmd, restoreCmd, pinCmd, rmCmd)
	rmCmd.Flags().BoolVar(&rmPermanent, "permanent", false, "Delete permanently instead of moving to the trash")
	pinCmd.Flags().BoolVar(&pinOff, "off", false, "Unpin instead")
}
