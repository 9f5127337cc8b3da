package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync/pkg/core"
)

var (
	listJSON   bool
	listTag    int64
	listSearch string
	listPages  int
)

var listCmd = &cobra.Command{
	Use:       "list [view]",
	Short:     "List the notes of a view",
	Long:      `List the notes of a view: generic (default), notes, todo, all, archived, trash or daily.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"generic", "notes", "todo", "all", "archived", "trash", "daily"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		rt := openRuntime(ctx)
		defer rt.Close()

		view := core.ViewGeneric
		if len(args) == 1 {
			view = core.ParseView(args[0])
		}
		filter := core.Filter{TagID: listTag, SearchText: listSearch}

		rt.Engine.ColdStart(ctx)
		if err := rt.Engine.SetNoteListFilter(ctx, view, filter); err != nil {
			if !errors.Is(err, core.ErrUnavailable) {
				fatal("Failed to list notes", err)
			}
			rt.Engine.SetOnline(false)
			if err := rt.Engine.SetNoteListFilter(ctx, view, filter); err != nil {
				fatal("Failed to list cached notes", err)
			}
		}
		for i := 1; i < listPages; i++ {
			if _, hasMore, _ := rt.Engine.PageState(view); !hasMore {
				break
			}
			if err := rt.Engine.NextPage(ctx); err != nil {
				fatal("Failed to load next page", err)
			}
		}

		notes := rt.Engine.Projection(view)
		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(notes); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}
		pending := rt.Engine.PendingOffline()
		for _, n := range notes {
			fmt.Println(formatNote(n, isPending(pending, n.ID)))
		}
	},
}

// formatNote renders one line: id, flags, first content line and tags.
// Pending offline notes are marked with ~.
func formatNote(n core.Note, pending bool) string {
	var flags strings.Builder
	if n.IsTop {
		flags.WriteByte('^')
	}
	if pending {
		flags.WriteByte('~')
	}
	if n.IsArchived {
		flags.WriteByte('a')
	}
	if n.IsRecycle {
		flags.WriteByte('x')
	}

	title, _, _ := strings.Cut(strings.TrimSpace(n.Content), "\n")
	if len(title) > 72 {
		title = title[:69] + "..."
	}

	line := fmt.Sprintf("%6d %-3s %s", n.ID, flags.String(), title)
	if len(n.Tags) > 0 {
		names := make([]string, 0, len(n.Tags))
		for _, t := range n.Tags {
			names = append(names, "#"+t.Name)
		}
		line += "  " + strings.Join(names, " ")
	}
	return line
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().Int64Var(&listTag, "tag", 0, "Filter notes by tag id")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Filter notes by text")
	listCmd.Flags().IntVar(&listPages, "pages", 1, "Number of pages to load")
}
