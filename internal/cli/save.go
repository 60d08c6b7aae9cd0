package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dashstore/internal/dashboard"
	"github.com/roach88/dashstore/internal/harness"
	"github.com/roach88/dashstore/internal/placement"
	"github.com/roach88/dashstore/internal/store"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Database string
	Name     string
}

// SaveOutput is the payload of a successful save.
type SaveOutput struct {
	Dashboard string `json:"dashboard"`
	Widgets   int    `json:"widgets"`
	SavedSeq  int64  `json:"saved_seq"`
}

func (o SaveOutput) String() string {
	return fmt.Sprintf("✓ Saved %q: %d widget(s) at seq %d", o.Dashboard, o.Widgets, o.SavedSeq)
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <scenario.yaml>",
		Short: "Run a scenario and save its widgets as a dashboard",
		Long: `Run a scenario and, if it passes, save the live widgets it leaves behind
as a dashboard in a SQLite database. An existing dashboard with the same name
is replaced. The dashboard is named after the scenario unless --name is set.

Example:
  dashstore save --db ./dash.db ./scenarios/widget_lifecycle.yaml
  dashstore save --db ./dash.db --name "Sales" ./scenarios/sales.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "dashboard name (defaults to the scenario name)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSave(opts *SaveOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScenario, "failed to load scenario", err)
	}
	result, err := harness.Run(scenario, harness.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScenario, "failed to run scenario", err)
	}
	if !result.Pass {
		return formatter.Fail(ExitFailure, ErrCodeScenario,
			fmt.Sprintf("scenario %s failed, not saving", scenario.Name), nil)
	}

	name := opts.Name
	if name == "" {
		name = scenario.Name
	}

	db, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	st := placement.New(placement.Config{ID: scenario.StoreID}, placement.WithLogger(logger))
	d, err := dashboard.New(name, st, logger)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to create dashboard", err)
	}
	defer d.Close()

	for _, w := range result.Widgets {
		if err := st.AddWidget(w); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to add widget "+w.WidgetID, err)
		}
	}
	formatter.VerboseLog("Saving %d widget(s) as %q", len(result.Widgets), d.Name())

	if err := d.Save(cmd.Context(), db); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, "failed to save dashboard", err)
	}

	return formatter.Success(SaveOutput{
		Dashboard: d.Name(),
		Widgets:   len(slices.Collect(st.Widgets())),
		SavedSeq:  d.SavedSeq(),
	})
}
