package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dashstore/internal/harness"
	"github.com/roach88/dashstore/internal/ir"
)

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Scenario string          `json:"scenario"`
	Result   *harness.Result `json:"result"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario against a fresh placement store.

Prints every notified change set and the live widgets at the end of the run.
Step expectations and assertions that fail are listed after the trace.

Exit codes:
  0 - Scenario passed
  1 - A step expectation or assertion failed
  2 - Command error (scenario not found or invalid)

Examples:
  dashstore run ./scenarios/widget_lifecycle.yaml
  dashstore run ./scenarios/widget_lifecycle.yaml --format json -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runScenarioFile(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScenario, "failed to load scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %q with %d step(s)", scenario.Name, len(scenario.Steps))

	result, err := harness.Run(scenario, harness.WithLogger(newLogger(opts, cmd.ErrOrStderr())))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScenario, "failed to run scenario", err)
	}

	if formatter.IsJSON() {
		if err := formatter.Success(RunOutput{Scenario: scenario.Name, Result: result}); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), scenario.Name, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// printResult writes a human-readable trace, the final widgets and any
// failures.
func printResult(w io.Writer, name string, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n\n", name)

	fmt.Fprintln(w, "Trace:")
	if len(result.Trace) == 0 {
		fmt.Fprintln(w, "  (no change sets)")
	}
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "  [seq %d] step %d %s (%s): %d change(s)\n",
			ev.Seq, ev.Step, ev.Op, ev.Source, len(ev.Changes))
		for _, c := range ev.Changes {
			fmt.Fprintf(w, "    %s.%s: %s -> %s\n",
				c.RecordID, c.Field, formatValue(c.Previous), formatValue(c.Next))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Widgets:")
	printWidgets(w, result.Widgets)

	fmt.Fprintln(w)
	if result.Pass {
		fmt.Fprintln(w, "✓ PASS")
		return
	}
	fmt.Fprintln(w, "✗ FAIL")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// formatValue renders a change value; absent values print as "-".
func formatValue(v ir.IRValue) string {
	if v == nil {
		return "-"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
