package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Database string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <dashboard>",
		Short: "Delete a saved dashboard",
		Long: `Delete a saved dashboard and all of its widgets.

Exit codes:
  0 - Dashboard deleted
  1 - No dashboard with that name
  2 - Command error (database not found)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runDelete(opts *DeleteOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	db, err := openExisting(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer db.Close()

	deleted, err := db.DeleteDashboard(cmd.Context(), name)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to delete dashboard", err)
	}
	if !deleted {
		return formatter.Fail(ExitFailure, ErrCodeNoSuchBoard, fmt.Sprintf("dashboard %q not found", name), nil)
	}
	return formatter.Success(fmt.Sprintf("✓ Deleted %q", name))
}
