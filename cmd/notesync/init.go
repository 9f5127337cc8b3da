package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
)

var initDrafts string

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a notesync workspace",
	Long: `Initialize a workspace in the target directory: writes notesync.yaml with
the current settings and creates the local cache and offline queue.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dir := dirFlag
		if dir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				fatal("Failed to get CWD", err)
			}
			dir = cwd
		}

		s := settings
		if initDrafts != "" {
			s.Drafts = initDrafts
		}

		storage, err := notesync.Init(dir,
			notesync.WithAutoInit(true),
			notesync.WithCacheAdapter(s.Cache),
			notesync.WithDraftDir(s.Drafts),
			notesync.WithLogger(slog.Default()),
		)
		if err != nil {
			fatal("Failed to initialize workspace", err)
		}
		defer storage.Close()

		path, err := s.WriteFile(storage.Dir)
		if err != nil {
			fatal("Failed to write settings", err)
		}
		fmt.Println("Initialized notesync workspace in", storage.Dir)
		fmt.Println("Settings written to", path)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initDrafts, "drafts", "", "Directory for local drafts, relative to the workspace")
}
