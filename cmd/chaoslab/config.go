package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/chaoslab/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and display configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with environment overrides applied and check
every field. Errors are reported together and exit with code 2.

Examples:
  chaoslab config validate --config chaoslab.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The root pre-run has already loaded and validated cfg.
		source := cfgFile
		if source == "" {
			source = "built-in defaults"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%s)\n", source)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with defaults applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := cli.OutputFormat(outputFormat)
		if format != cli.FormatJSON {
			format = cli.FormatYAML
		}
		formatter, err := cli.NewFormatter(format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configShowCmd)
}
