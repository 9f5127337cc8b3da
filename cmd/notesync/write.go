package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync/pkg/core"
)

var (
	addType     string
	editDraft   bool
	editCommit  bool
)

var addCmd = &cobra.Command{
	Use:   "add [content...]",
	Short: "Create a note",
	Long:  `Create a note from the arguments, or from stdin when none are given. Without connectivity the note is queued.`,
	Run: func(cmd *cobra.Command, args []string) {
		content, err := readContent(cmd, args)
		if err != nil {
			fatal("Failed to read content", err)
		}

		ctx := cmd.Context()
		rt := openRuntime(ctx)
		defer rt.Close()

		note, err := rt.Engine.CreateNote(ctx, core.NoteInput{
			Content: core.Ptr(content),
			Type:    core.Ptr(core.ParseNoteType(addType)),
		})
		if err != nil {
			fatal("Failed to create note", err)
		}
		if isPending(rt.Engine.PendingOffline(), note.ID) {
			fmt.Printf("Queued note %d for sync\n", note.ID)
			return
		}
		fmt.Printf("Created note %d\n", note.ID)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> [content...]",
	Short: "Edit a note",
	Long: `Replace the content of a note.

With --draft the note is copied into the draft directory for editing and is
left alone by background merges until --commit pushes the draft back.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID(args[0])
		if err != nil {
			fatal("Invalid note id", err)
		}

		ctx := cmd.Context()
		rt := openRuntime(ctx)
		defer rt.Close()
		rt.Engine.ColdStart(ctx)

		drafts := rt.Storage.Drafts
		if (editDraft || editCommit) && drafts == nil {
			fatal("Drafts are disabled", errors.New("set drafts in notesync.yaml"))
		}

		switch {
		case editDraft:
			note, ok := rt.Engine.Find(id)
			if !ok {
				fatal("Failed to open draft", fmt.Errorf("note %d: %w", id, core.ErrNotFound))
			}
			if err := drafts.Open(id, note.Content); err != nil {
				fatal("Failed to open draft", err)
			}
			fmt.Println(filepath.Join(drafts.Path, strconv.FormatInt(id, 10)+".md"))
			return
		case editCommit:
			content, err := drafts.Read(id)
			if err != nil {
				fatal("Failed to read draft", err)
			}
			if _, err := rt.Engine.UpdateNote(ctx, core.NoteInput{ID: id, Content: core.Ptr(content)}); err != nil {
				fatal("Failed to update note", err)
			}
			if err := drafts.Close(id); err != nil {
				fatal("Failed to close draft", err)
			}
			return
		}

		content, err := readContent(cmd, args[1:])
		if err != nil {
			fatal("Failed to read content", err)
		}
		if _, err := rt.Engine.UpdateNote(ctx, core.NoteInput{ID: id, Content: core.Ptr(content)}); err != nil {
			fatal("Failed to update note", err)
		}
	},
}

// readContent joins args, or reads stdin when there are none.
func readContent(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	content := strings.TrimRight(string(data), "\n")
	if strings.TrimSpace(content) == "" {
		return "", core.ErrInvalidNote
	}
	return content, nil
}

func isPending(pending []core.OfflineNote, id int64) bool {
	for _, o := range pending {
		if o.ID == id {
			return true
		}
	}
	return false
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, fmt.Errorf("invalid note id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	rootCmd.AddCommand(addCmd, editCmd)
	addCmd.Flags().StringVarP(&addType, "type", "t", "generic", "Note type: generic, note or todo")
	editCmd.Flags().BoolVar(&editDraft, "draft", false, "Copy the note into the draft directory")
	editCmd.Flags().BoolVar(&editCommit, "commit", false, "Push the draft back and remove it")
	editCmd.MarkFlagsMutuallyExclusive("draft", "commit")
}
