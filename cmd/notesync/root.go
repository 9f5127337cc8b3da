package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/metrics"
)

var (
	verbose  bool
	quiet    bool
	dirFlag  string
	settings Settings
	// workspace is the resolved workspace root.
	workspace string
	// registry collects the metrics of the current runtime.
	registry *prometheus.Registry
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "An offline-first sync client for a remote note service",
	Long: `notesync keeps a local, paginated view of your remote notes.
Writes made without connectivity are queued and pushed once the service is
reachable again; list refreshes never drop a note you just wrote.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		if quiet {
			level = slog.LevelWarn
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		workspace = resolveWorkspace(dirFlag)
		v, err := newViper(workspace)
		if err != nil {
			return err
		}
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
		settings, err = loadSettings(v)
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	flags.StringVarP(&dirFlag, "dir", "C", "", "Workspace directory (default: nearest directory holding notesync.yaml)")
	flags.String("remote", "", "Base URL of the note service")
	flags.String("token", "", "Bearer token for the note service")
	flags.String("cache", "", "Local cache adapter: sqlite, fs or memory")
	flags.Bool("offline", false, "Start without connectivity; writes are queued")
}

// resolveWorkspace picks the explicit directory, then the nearest
// workspace above the working directory, then the working directory.
func resolveWorkspace(dir string) string {
	if dir != "" {
		return dir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root, err := notesync.FindRoot(cwd); err == nil {
		return root
	}
	return cwd
}

// openRuntime wires a runtime for the current workspace and probes the
// remote once so the engine starts with the right connectivity.
func openRuntime(ctx context.Context) *notesync.Runtime {
	registry = prometheus.NewRegistry()
	opts := append(settings.Options(),
		notesync.WithLogger(slog.Default()),
		notesync.WithMetrics(metrics.New(registry)),
		notesync.WithNotifier(core.NotifierFunc(printNotification)),
		notesync.WithMustExist(true),
	)
	rt, err := notesync.New(workspace, opts...)
	if err != nil {
		fatal("Failed to open workspace", err)
	}
	if !settings.Offline && !rt.Probe.Check(ctx) {
		slog.Warn("note service unreachable, working offline", "remote", settings.Remote)
	}
	return rt
}

func printNotification(n core.Notification) {
	if quiet && n.Kind != core.NotifyError {
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Kind, n.Message)
}
