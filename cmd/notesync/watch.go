package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	lcadapter "github.com/aretw0/notesync/pkg/adapters/lifecycle"
	"github.com/aretw0/notesync/pkg/core"
)

var (
	watchViews       []string
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the workspace in sync and print projection changes",
	Long: `Run the engine in the foreground: probe connectivity, replay the offline
queue on reconnect, poll for server-side enrichment and follow the draft
directory. Projection changes are printed until interrupted.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt := openRuntime(ctx)
		defer rt.Close()

		events, unsubscribe := rt.Engine.Subscribe(64)
		defer unsubscribe()

		if err := rt.Start(ctx); err != nil {
			slog.Warn("initial load failed", "error", err)
		}

		if drafts := rt.Storage.Drafts; drafts != nil {
			w := drafts.NewWatcher(func(id int64, open bool) {
				slog.Info("draft changed", "id", id, "open", open)
				if !open {
					rt.Engine.Refresh()
				}
			})
			if err := w.Start(ctx); err != nil {
				fatal("Failed to watch drafts", err)
			}
			defer w.Stop(context.Background())
		}

		if watchMetricsAddr != "" {
			srv := serveMetrics(watchMetricsAddr)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		views := make([]core.View, 0, len(watchViews))
		for _, v := range watchViews {
			views = append(views, core.ParseView(v))
		}
		src := lcadapter.NewSource(events, views...)
		if err := src.Start(ctx); err != nil {
			fatal("Failed to start event source", err)
		}

		slog.Info("watching", "workspace", rt.Storage.Dir, "online", rt.Engine.Online())
		for ev := range src.Events() {
			fmt.Println(ev)
		}
	},
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSliceVar(&watchViews, "view", nil, "Only print changes of these views")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}
