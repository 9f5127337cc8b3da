package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/adapters/httpremote"
	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
)

// resetFlags restores every flag to its default so runs do not leak into
// each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), "notesync %v", args)
}

func TestCLI_Workflow(t *testing.T) {
	svc := memory.NewService()
	srv := httptest.NewServer(httpremote.NewHandler(svc, nil))
	defer srv.Close()

	dir := t.TempDir()
	run(t, "init", "-C", dir, "--remote", srv.URL, "--cache", "sqlite", "--drafts", "drafts", "-q")
	require.FileExists(t, filepath.Join(dir, notesync.ConfigFile))
	require.DirExists(t, filepath.Join(dir, ".notesync"))

	t.Run("add", func(t *testing.T) {
		run(t, "add", "-C", dir, "-q", "hello", "world")
		run(t, "add", "-C", dir, "-q", "--type", "todo", "buy milk")
		require.Equal(t, 2, svc.Len())

		n, ok := svc.Get(1)
		require.True(t, ok)
		assert.Equal(t, "hello world", n.Content)
		n, _ = svc.Get(2)
		assert.Equal(t, core.NoteTypeTodo, n.Type)
	})

	t.Run("batch", func(t *testing.T) {
		run(t, "archive", "-C", dir, "-q", "1")
		n, _ := svc.Get(1)
		assert.True(t, n.IsArchived)

		run(t, "rm", "-C", dir, "-q", "2")
		n, _ = svc.Get(2)
		assert.True(t, n.IsRecycle)

		run(t, "restore", "-C", dir, "-q", "2")
		n, _ = svc.Get(2)
		assert.False(t, n.IsRecycle)
	})

	t.Run("drafts", func(t *testing.T) {
		run(t, "edit", "-C", dir, "-q", "--draft", "2")
		draft := filepath.Join(dir, "drafts", "2.md")
		require.FileExists(t, draft)
		require.NoError(t, os.WriteFile(draft, []byte("buy oat milk"), 0644))

		run(t, "edit", "-C", dir, "-q", "--commit", "2")
		n, _ := svc.Get(2)
		assert.Equal(t, "buy oat milk", n.Content)
		assert.NoFileExists(t, draft)
	})

	t.Run("offline", func(t *testing.T) {
		run(t, "add", "-C", dir, "-q", "--offline", "written on a plane")
		assert.Equal(t, 2, svc.Len(), "nothing reaches the service while offline")

		run(t, "sync", "-C", dir, "-q")
		assert.Equal(t, 3, svc.Len())
	})

	t.Run("delete", func(t *testing.T) {
		run(t, "rm", "-C", dir, "-q", "--permanent", "1")
		_, ok := svc.Get(1)
		assert.False(t, ok)
	})

	run(t, "list", "-C", dir, "-q", "all", "--json")
	run(t, "status", "-C", dir, "-q", "--json")
}
