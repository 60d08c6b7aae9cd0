package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dashstore/internal/harness"
	"github.com/roach88/dashstore/internal/ir"
	"github.com/roach88/dashstore/internal/schema"
)

// ValidationIssue is one problem found in a schema file.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// TableSummary describes one compiled table.
type TableSummary struct {
	Name       string   `json:"name"`
	PrimaryKey string   `json:"primary_key"`
	Tombstone  string   `json:"tombstone,omitempty"`
	Fields     []string `json:"fields"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Tables []TableSummary    `json:"tables,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema.cue>",
		Short: "Validate a CUE table schema",
		Long: `Compile a CUE schema file and check that it declares a widget table
usable by a placement store.

Exit codes:
  0 - Schema valid
  1 - Schema invalid
  2 - Command error (file not found)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	src, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to read schema", err)
	}

	tables, err := schema.Compile(src, path)
	if err != nil {
		return outputValidationResult(formatter, ValidationResult{Errors: []ValidationIssue{compileIssue(err)}})
	}

	reg := schema.NewRegistry(tables...)
	result := ValidationResult{}
	for _, name := range reg.Names() {
		t, _ := reg.Lookup(name)
		formatter.VerboseLog("Compiled table %s (%d field(s))", name, len(t.Fields))
		result.Tables = append(result.Tables, TableSummary{
			Name:       t.Name,
			PrimaryKey: t.PrimaryKey,
			Tombstone:  t.Tombstone,
			Fields:     t.FieldNames(),
		})
	}

	widget, ok := reg.Lookup(ir.WidgetTable)
	switch {
	case !ok:
		result.Errors = append(result.Errors, ValidationIssue{
			Field:   "table",
			Message: fmt.Sprintf("no %q table declared", ir.WidgetTable),
		})
	default:
		if missing := harness.MissingWidgetFields(widget); len(missing) > 0 {
			result.Errors = append(result.Errors, ValidationIssue{
				Field:   "table." + ir.WidgetTable,
				Message: "missing fields: " + strings.Join(missing, ", "),
			})
		}
		if widget.PrimaryKey != ir.FieldWidgetID {
			result.Errors = append(result.Errors, ValidationIssue{
				Field:   "table." + ir.WidgetTable + ".primary_key",
				Message: fmt.Sprintf("must be %q, got %q", ir.FieldWidgetID, widget.PrimaryKey),
			})
		}
		if widget.Tombstone != ir.FieldRemoved {
			result.Errors = append(result.Errors, ValidationIssue{
				Field:   "table." + ir.WidgetTable + ".tombstone",
				Message: fmt.Sprintf("must be %q, got %q", ir.FieldRemoved, widget.Tombstone),
			})
		}
	}

	return outputValidationResult(formatter, result)
}

// compileIssue converts a compile error, keeping the source line when known.
func compileIssue(err error) ValidationIssue {
	var cErr *schema.CompileError
	if errors.As(err, &cErr) {
		issue := ValidationIssue{Field: cErr.Field, Message: cErr.Message}
		if cErr.Pos.IsValid() {
			issue.Line = cErr.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{Field: "schema", Message: err.Error()}
}

func outputValidationResult(formatter *OutputFormatter, result ValidationResult) error {
	result.Valid = len(result.Errors) == 0

	if formatter.IsJSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		if err := formatter.Error(ErrCodeCompile, "schema invalid", result.Errors); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "schema invalid")
	}

	w := formatter.Writer
	if result.Valid {
		for _, t := range result.Tables {
			fmt.Fprintf(w, "  %s (key %s): %s\n", t.Name, t.PrimaryKey, strings.Join(t.Fields, ", "))
		}
		fmt.Fprintln(w, "✓ Schema valid")
		return nil
	}

	fmt.Fprintf(w, "✗ %d error(s)\n", len(result.Errors))
	for _, e := range result.Errors {
		if e.Line > 0 {
			fmt.Fprintf(w, "  line %d: %s: %s\n", e.Line, e.Field, e.Message)
		} else {
			fmt.Fprintf(w, "  %s: %s\n", e.Field, e.Message)
		}
	}
	return NewExitError(ExitFailure, "schema invalid")
}
