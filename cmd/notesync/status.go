package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"
)

var statusJSON bool

// statusReport is the machine-readable output of `notesync status`.
type statusReport struct {
	Workspace  string         `json:"workspace"`
	Remote     string         `json:"remote"`
	Online     bool           `json:"online"`
	Pending    int            `json:"pending"`
	Components map[string]any `json:"components"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, the offline queue and component state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		rt := openRuntime(ctx)
		defer rt.Close()
		rt.Engine.ColdStart(ctx)

		report := statusReport{
			Workspace:  rt.Storage.Dir,
			Remote:     settings.Remote,
			Online:     rt.Engine.Online(),
			Pending:    len(rt.Engine.PendingOffline()),
			Components: make(map[string]any),
		}
		components := []any{rt.Engine, rt.Storage.Cache, rt.Service}
		if rt.Storage.Drafts != nil {
			components = append(components, rt.Storage.Drafts)
		}
		for _, c := range components {
			intro, ok := c.(introspection.Introspectable)
			if !ok {
				continue
			}
			name := fmt.Sprintf("%T", c)
			if comp, ok := c.(introspection.Component); ok {
				name = comp.ComponentType()
			}
			report.Components[name] = intro.State()
		}
		report.Components["probe"] = rt.Probe.State()

		if statusJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(report); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		state := "offline"
		if report.Online {
			state = "online"
		}
		fmt.Printf("workspace: %s\n", report.Workspace)
		fmt.Printf("remote:    %s (%s)\n", report.Remote, state)
		fmt.Printf("pending:   %d\n", report.Pending)
		for _, o := range rt.Engine.PendingOffline() {
			kind := "create"
			if o.TargetID != 0 {
				kind = fmt.Sprintf("edit of %d", o.TargetID)
			}
			fmt.Printf("  %d  %s\n", o.ID, kind)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output component state as JSON")
}
