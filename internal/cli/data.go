package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/queryir"
	"github.com/roach88/cascade/internal/session"
	"github.com/roach88/cascade/internal/store"
)

// dataFunc runs one data command inside an open environment.
type dataFunc func(ctx context.Context, e *env) ([]engine.Result, error)

// runData opens the environment, runs fn, prints its results and closes
// the database.
func runData(opts *RootOptions, cmd *cobra.Command, fn dataFunc) error {
	formatter := newFormatter(opts, cmd)

	e, err := openEnv(opts)
	if err != nil {
		return reportExitError(formatter, err)
	}
	defer e.close(cmd.ErrOrStderr())

	results, err := fn(cmd.Context(), e)
	if err != nil {
		return reportExitError(formatter, classifyDataError(err))
	}
	return outputResults(formatter, results)
}

// classifyDataError maps session errors to exit errors.
func classifyDataError(err error) error {
	if errors.Is(err, session.ErrUnknownModel) || errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "not found", err).WithCode(ErrCodeNotFound)
	}
	return WrapExitError(ExitCommandError, "operation failed", err)
}

// parseAssignments parses field=value arguments. Values are JSON literals
// or plain strings.
func parseAssignments(args []string) (ir.IRObject, error) {
	fields := make(ir.IRObject, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("expected field=value, got %q", arg)).WithCode(ErrCodeBadInput)
		}
		fields[name] = ir.ParseLiteral(value)
	}
	return fields, nil
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <model> <id> <field=value>...",
		Short: "Write stored fields of a record",
		Long: `Write stored fields of a record, creating it if needed, and propagate
the change to every computed field that depends on it.

Values are JSON literals; anything else is taken as text.

Examples:
  cascade set Flight f1 price=150
  cascade set Flight f3 carrier=LH price=125`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[2:])
			if err != nil {
				return reportExitError(newFormatter(rootOpts, cmd), err)
			}
			return runData(rootOpts, cmd, func(ctx context.Context, e *env) ([]engine.Result, error) {
				res, err := e.session.Set(ctx, args[0], args[1], fields, e.user)
				return []engine.Result{res}, err
			})
		},
	}
}

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <model> <id> <field> <to>",
		Short: "Link two records",
		Long: `Link record <id> of <model> through link field <field> to record <to>.
Linking an already linked pair changes nothing.

Example:
  cascade link Invoice i1 flights f3`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runData(rootOpts, cmd, func(ctx context.Context, e *env) ([]engine.Result, error) {
				res, err := e.session.Link(ctx, args[0], args[1], args[2], args[3], e.user)
				return []engine.Result{res}, err
			})
		},
	}
}

// NewUnlinkCommand creates the unlink command.
func NewUnlinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unlink <model> <id> <field> <to>",
		Short:         "Remove a link between two records",
		Args:          cobra.ExactArgs(4),
		Example:       "  cascade unlink Invoice i1 flights f3",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runData(rootOpts, cmd, func(ctx context.Context, e *env) ([]engine.Result, error) {
				res, err := e.session.Unlink(ctx, args[0], args[1], args[2], args[3], e.user)
				return []engine.Result{res}, err
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <model> <id>...",
		Short:         "Delete records and update the records linked to them",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runData(rootOpts, cmd, func(ctx context.Context, e *env) ([]engine.Result, error) {
				res, err := e.session.Delete(ctx, args[0], args[1:], e.user)
				return []engine.Result{res}, err
			})
		},
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dataset.yaml>",
		Short: "Load records and links, then compute every field",
		Long: `Load a YAML dataset of records and links, then recompute each model
that received records.

Dataset format:
  records:
    - {model: Invoice, id: i1, fields: {number: INV-1}}
  links:
    - {model: Invoice, id: i1, field: flights, to: f1}`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := session.LoadDataset(args[0])
			if err != nil {
				return reportExitError(newFormatter(rootOpts, cmd), WrapExitError(ExitCommandError, "failed to load dataset", err).WithCode(ErrCodeBadInput))
			}
			return runData(rootOpts, cmd, func(ctx context.Context, e *env) ([]engine.Result, error) {
				return e.session.Import(ctx, ds, e.user)
			})
		},
	}
}

// RecomputeOptions holds flags for the recompute command.
type RecomputeOptions struct {
	*RootOptions
	IDs   []string
	Where string
}

// NewRecomputeCommand creates the recompute command.
func NewRecomputeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecomputeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recompute <model>",
		Short: "Bring computed fields up to date",
		Long: `Recompute the computed fields of a model and propagate any change.
Without --ids or --where every record of the model is recomputed.

Examples:
  cascade recompute Invoice
  cascade recompute Flight --ids f1,f2
  cascade recompute Flight --where "carrier = AF"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.IDs) > 0 && opts.Where != "" {
				return reportExitError(newFormatter(rootOpts, cmd),
					NewExitError(ExitCommandError, "--ids and --where are mutually exclusive").WithCode(ErrCodeBadInput))
			}
			filter, err := queryir.ParseFilter(opts.Where)
			if err != nil {
				return reportExitError(newFormatter(rootOpts, cmd), WrapExitError(ExitCommandError, "invalid --where", err).WithCode(ErrCodeBadInput))
			}
			return runData(rootOpts, cmd, func(ctx context.Context, e *env) ([]engine.Result, error) {
				res, err := e.session.Recompute(ctx, args[0], opts.IDs, filter, e.user)
				return []engine.Result{res}, err
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.IDs, "ids", nil, "record ids to recompute")
	cmd.Flags().StringVar(&opts.Where, "where", "", `filter, e.g. "status = paid AND region in (eu, us)"`)

	return cmd
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <txn-id>",
		Short: "Restore the stored values a transaction overwrote",
		Long: `Write back the previous stored values of every record a transaction
changed, then recompute what depends on them. Computed values are never
restored directly.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runData(rootOpts, cmd, func(ctx context.Context, e *env) ([]engine.Result, error) {
				return e.session.Undo(ctx, args[0], e.user)
			})
		},
	}
}
