package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dashstore/internal/ir"
	"github.com/roach88/dashstore/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database  string
	Dashboard string
	Notebook  string
}

// DashboardView is one saved dashboard with its widgets.
type DashboardView struct {
	Name     string          `json:"name"`
	StoreID  int64           `json:"store_id"`
	SavedSeq int64           `json:"saved_seq"`
	Widgets  []ir.WidgetInfo `json:"widgets"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show saved dashboards",
		Long: `List the dashboards saved in a database, or show one of them.

With --dashboard, prints that dashboard's widgets in saved order. With
--notebook, prints every saved widget bound to the notebook, grouped by
dashboard.

Examples:
  dashstore show --db ./dash.db
  dashstore show --db ./dash.db --dashboard "Sales"
  dashstore show --db ./dash.db --notebook nb-42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Dashboard, "dashboard", "", "dashboard to show")
	cmd.Flags().StringVar(&opts.Notebook, "notebook", "", "show widgets bound to this notebook")
	cmd.MarkFlagsMutuallyExclusive("dashboard", "notebook")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	db, err := openExisting(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch {
	case opts.Dashboard != "":
		snap, err := db.LoadSnapshot(ctx, opts.Dashboard)
		if errors.Is(err, store.ErrDashboardNotFound) {
			return formatter.Fail(ExitFailure, ErrCodeNoSuchBoard,
				fmt.Sprintf("dashboard %q not found", opts.Dashboard), nil)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to load dashboard", err)
		}
		view := DashboardView{Name: snap.Name, StoreID: snap.StoreID, SavedSeq: snap.SavedSeq, Widgets: snap.Widgets}
		if formatter.IsJSON() {
			return formatter.Success(view)
		}
		fmt.Fprintf(w, "%s (store %d, seq %d)\n", view.Name, view.StoreID, view.SavedSeq)
		printWidgets(w, view.Widgets)
		return nil

	case opts.Notebook != "":
		byDashboard, err := db.NotebookWidgets(ctx, opts.Notebook)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to query notebook widgets", err)
		}
		if formatter.IsJSON() {
			return formatter.Success(byDashboard)
		}
		if len(byDashboard) == 0 {
			fmt.Fprintf(w, "No widgets for notebook %s.\n", opts.Notebook)
			return nil
		}
		names := slices.Sorted(maps.Keys(byDashboard))
		for _, name := range names {
			fmt.Fprintln(w, name)
			printWidgets(w, byDashboard[name])
		}
		return nil

	default:
		summaries, err := db.ListDashboards(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list dashboards", err)
		}
		if formatter.IsJSON() {
			return formatter.Success(summaries)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(w, "No dashboards saved.")
			return nil
		}
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d widget(s)\tstore %d\tseq %d\n", s.Name, s.WidgetCount, s.StoreID, s.SavedSeq)
		}
		return nil
	}
}

// openExisting opens a database that must already exist; store.Open would
// create an empty one.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

func printWidgets(w io.Writer, widgets []ir.WidgetInfo) {
	if len(widgets) == 0 {
		fmt.Fprintln(w, "  (no widgets)")
	}
	for _, wi := range widgets {
		fmt.Fprintf(w, "  %s  notebook=%s cell=%s  (%d,%d) %dx%d\n",
			wi.WidgetID, wi.NotebookID, wi.CellID, wi.Left, wi.Top, wi.Width, wi.Height)
	}
}
