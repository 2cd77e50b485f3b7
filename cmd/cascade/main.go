package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pengelbrecht/cascade/internal/layout"
	"github.com/pengelbrecht/cascade/internal/pipeline"
	"github.com/pengelbrecht/cascade/internal/tui"
	"github.com/pengelbrecht/cascade/internal/update"
	"github.com/pengelbrecht/cascade/internal/watch"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Live visualizer for multi-stage pipeline runs",
	Long: `Cascade renders a multi-stage pipeline as a positioned dependency graph and
keeps it updated while the pipeline executes or is replayed from history. It
polls the execution engine's append-only log and shows per-stage status,
cost-scaled stage boxes, and a feed of recent activity.`,
	Version: version,
}

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Watch a live session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args[0], watch.ModeLive)
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Replay a finished session from history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args[0], watch.ModeReplay)
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout <pipeline.yaml>",
	Short: "Compute and print the pipeline layout without watching",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := pipeline.LoadDefinition(args[0])
		if err != nil {
			return err
		}
		g := pipeline.BuildGraph(def)
		for _, w := range g.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}

		strategy := layout.StrategyGraph
		if linear, _ := cmd.Flags().GetBool("linear"); linear {
			strategy = layout.StrategyLinear
		}
		l := layout.Compute(g, strategy, nil, layout.Options{})

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(l)
		}

		for _, n := range l.Nodes {
			fmt.Printf("layer %d  %-20s (%.0f,%.0f) scale %.2f\n", n.Layer, n.Name, n.X, n.Y, n.Scale)
		}
		for _, e := range l.Edges {
			fmt.Printf("%s -> %s [%s]\n", e.Source, e.Target, e.Kind)
		}
		if len(l.Unplaced) > 0 {
			fmt.Fprintf(os.Stderr, "warning: unplaced (cycle): %v\n", l.Unplaced)
		}
		return nil
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade cascade to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		release, available, err := update.CheckForUpdate(ctx, version)
		if err != nil {
			return err
		}
		if !available {
			fmt.Println("Already up to date.")
			return nil
		}
		fmt.Printf("Updating %s -> %s...\n", version, release.Version)
		if err := update.Apply(ctx, version); err != nil {
			return err
		}
		fmt.Println("Done.")
		return nil
	},
}

func runWatch(cmd *cobra.Command, sessionID string, mode watch.Mode) error {
	pipelinePath, _ := cmd.Flags().GetString("pipeline")
	def, err := pipeline.LoadDefinition(pipelinePath)
	if err != nil {
		return err
	}

	logURL, _ := cmd.Flags().GetString("log-url")
	checkpointURL, _ := cmd.Flags().GetString("checkpoint-url")

	logger := zerolog.Nop()
	if logPath, _ := cmd.Flags().GetString("log-file"); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logger = zerolog.New(f).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}

	strategy := layout.StrategyGraph
	if linear, _ := cmd.Flags().GetBool("linear"); linear {
		strategy = layout.StrategyLinear
	}

	w, err := watch.New(watch.Config{
		Definition:    def,
		SessionID:     sessionID,
		Mode:          mode,
		Strategy:      strategy,
		LogURL:        logURL,
		CheckpointURL: checkpointURL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	return tui.Run(w, tui.Config{
		CascadeName: def.Name,
		SessionID:   sessionID,
		Mode:        mode,
	})
}

func init() {
	for _, c := range []*cobra.Command{watchCmd, replayCmd} {
		c.Flags().String("pipeline", "cascade.yaml", "Pipeline definition file")
		c.Flags().String("log-url", "http://localhost:8321/api/log", "Execution log endpoint")
		c.Flags().String("checkpoint-url", "http://localhost:8321/api/checkpoints", "Checkpoint endpoint")
		c.Flags().String("log-file", "", "Write debug logs to this file")
		c.Flags().Bool("linear", false, "Use the linear single-row layout")
	}
	layoutCmd.Flags().Bool("linear", false, "Use the linear single-row layout")
	layoutCmd.Flags().Bool("json", false, "Print the layout as JSON")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(upgradeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
