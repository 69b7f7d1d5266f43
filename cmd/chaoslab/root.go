package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/chaoslab/pkg/cli"
	"mercator-hq/chaoslab/pkg/config"
	"mercator-hq/chaoslab/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	logLevel     string
	outputFormat string

	// cfg is loaded by the root PersistentPreRunE.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chaoslab",
	Short: "Chaoslab - diagnostic sessions and telemetry retention",
	Long: `Chaoslab orchestrates diagnostic sessions: it enables a fault-injection
feature flag, captures telemetry for a fixed window, disables the flag and
annotates every phase so the captured signals can be correlated with the fault.

It also enforces retention on the telemetry object store:
  - continuous/{YYYY-MM-DD}/... data is deleted after a number of days
  - sessions/{id}/... data is deleted after the session's maximum retention`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml, csv")
}

// loadConfig loads and validates the configuration and installs the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if logLevel != "" {
		loaded.Telemetry.Logging.Level = logLevel
	}
	if err := config.Validate(loaded); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if _, err := logging.Setup(&loaded.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	config.SetConfig(loaded)
	cfg = loaded
	return nil
}

// render writes v to stdout in the selected output format.
func render(cmd *cobra.Command, v any) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(outputFormat))
	if err != nil {
		return err
	}
	return formatter.FormatTo(cmd.OutOrStdout(), v)
}
