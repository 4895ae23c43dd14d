package commands

import (
	"encoding/json"
	"fmt"

	"github.com/nvr-ai/go-cytometry/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cellbangle configuration",
		Long:  `Create a configuration template or show the effective configuration.`,
	}

	initCmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write a configuration template with the default values",
		Example: `  # Write cellbangle.yaml in the current directory
  cellbangle config init

  # Write to a custom location
  cellbangle config init ~/.config/cellbangle/config.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "cellbangle.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Example: `  # Show configuration as YAML (default)
  cellbangle config show --config cellbangle.yaml

  # Show configuration as JSON
  cellbangle config show --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(cfg)
			case "yaml":
				encoder := yaml.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent(2)
				return encoder.Encode(cfg)
			default:
				return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", format)
			}
		},
	}
	showCmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
