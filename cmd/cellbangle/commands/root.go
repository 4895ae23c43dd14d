package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/nvr-ai/go-cytometry/config"
	"github.com/nvr-ai/go-cytometry/logger"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the cellbangle command tree.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "cellbangle",
		Short: "cellbangle - Cell and droplet detection for microfluidic videos",
		Long: `cellbangle finds cells and droplets in microfluidic assay videos.

It estimates a static background as the per-pixel median of the whole video,
subtracts it from every frame, thresholds the difference and fits an ellipse
or a circle to every foreground blob. Blobs whose fitted size looks like a
cell are painted in and counted.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().Bool("log-pretty", false, "human-readable console logs")

	load := func(cmd *cobra.Command) (config.Config, error) {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return config.Config{}, err
		}
		logger.Init(cfg.Log.Level, cfg.Log.Pretty)
		return cfg, nil
	}

	root.AddCommand(
		newRunCommand(load),
		newBackgroundCommand(load),
		newConfigCommand(load),
	)
	return root
}

// loadFunc resolves the effective configuration for a command.
type loadFunc func(cmd *cobra.Command) (config.Config, error)

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
