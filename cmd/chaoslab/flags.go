package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/chaoslab/pkg/cli"
	"mercator-hq/chaoslab/pkg/flags"
)

var flagsFlags struct {
	evalContext map[string]string
}

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Inspect and toggle fault-injection flags",
}

var flagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List defined flags and their current values",
	RunE:  listFlags,
}

var flagsEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Turn a flag on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleFlag(cmd, args[0], true)
	},
}

var flagsDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Turn a flag off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleFlag(cmd, args[0], false)
	},
}

var flagsEvaluateCmd = &cobra.Command{
	Use:   "evaluate <name>",
	Short: "Resolve a flag for an evaluation context",
	Example: `  chaoslab flags evaluate paymentServiceFailure --ctx region=eu-west-1
  chaoslab flags evaluate cacheMiss -o json`,
	Args: cobra.ExactArgs(1),
	RunE: evaluateFlag,
}

func init() {
	rootCmd.AddCommand(flagsCmd)
	flagsCmd.AddCommand(flagsListCmd, flagsEnableCmd, flagsDisableCmd, flagsEvaluateCmd)

	flagsEvaluateCmd.Flags().StringToStringVar(&flagsFlags.evalContext, "ctx", nil, "evaluation context as key=value pairs")
}

// flagRow is one flag in list output.
type flagRow struct {
	Name           string `json:"name" yaml:"name"`
	State          string `json:"state" yaml:"state"`
	DefaultVariant string `json:"default_variant" yaml:"default_variant"`
	Value          any    `json:"value" yaml:"value"`
	Rules          int    `json:"targeting_rules" yaml:"targeting_rules"`
}

type flagTable []flagRow

func (t flagTable) Headers() []string {
	return []string{"NAME", "STATE", "VARIANT", "VALUE", "RULES"}
}

func (t flagTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, f := range t {
		rows = append(rows, []string{f.Name, f.State, f.DefaultVariant, fmt.Sprint(f.Value), strconv.Itoa(f.Rules)})
	}
	return rows
}

func newFlagTable(defined []*flags.Flag) flagTable {
	t := make(flagTable, 0, len(defined))
	for _, f := range defined {
		t = append(t, flagRow{
			Name:           f.Name,
			State:          f.State,
			DefaultVariant: f.DefaultVariant,
			Value:          f.Variants[f.DefaultVariant],
			Rules:          len(f.Targeting),
		})
	}
	return t
}

func listFlags(cmd *cobra.Command, args []string) error {
	controller, closer, err := openFlagController()
	if err != nil {
		return cli.NewCommandError("flags list", err)
	}
	defer closer()

	defined, err := controller.List(cmd.Context())
	if err != nil {
		return cli.NewCommandError("flags list", err)
	}
	return render(cmd, newFlagTable(defined))
}

func toggleFlag(cmd *cobra.Command, name string, on bool) error {
	op := "flags disable"
	if on {
		op = "flags enable"
	}

	controller, closer, err := openFlagController()
	if err != nil {
		return cli.NewCommandError(op, err)
	}
	defer closer()

	if on {
		err = controller.Enable(cmd.Context(), name)
	} else {
		err = controller.Disable(cmd.Context(), name)
	}
	if err != nil {
		return cli.NewCommandError(op, err)
	}

	value, err := controller.GetValue(cmd.Context(), name)
	if err != nil {
		return cli.NewCommandError(op, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %t\n", name, value)
	return nil
}

func evaluateFlag(cmd *cobra.Command, args []string) error {
	controller, closer, err := openFlagController()
	if err != nil {
		return cli.NewCommandError("flags evaluate", err)
	}
	defer closer()

	eval, err := controller.Evaluate(cmd.Context(), args[0], flags.EvaluationContext(flagsFlags.evalContext))
	if err != nil {
		return cli.NewCommandError("flags evaluate", err)
	}
	return render(cmd, eval)
}

// openFlagController opens the configured flag backend on its own.
func openFlagController() (flags.Controller, func(), error) {
	controller, file, err := openFlags(&cfg.Flags)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {}
	if file != nil {
		closer = func() { _ = file.Close() }
	}
	return controller, closer, nil
}
