package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit  int
	Record string // "Model/id"
}

// HistoryResult holds the history output. Kind says which slice is
// filled: "transactions" or "operations".
type HistoryResult struct {
	Kind         string                `json:"kind"`
	Transactions []ir.TransactionInfo  `json:"transactions,omitempty"`
	Operations   []ir.AppliedOperation `json:"operations,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [txn-id]",
		Short: "Show committed transactions and their operations",
		Long: `Show the operation log.

Without arguments, lists the most recent transactions. With a transaction
id, shows every operation it applied together with the values it replaced.
With --record, shows every operation that touched one record.

Examples:
  cascade history
  cascade history 0192f7c4-3c1e-7d44-9a0e-6f1b2c3d4e5f
  cascade history --record Invoice/i1`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of transactions to list")
	cmd.Flags().StringVar(&opts.Record, "record", "", "show the history of one record (Model/id)")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return reportExitError(formatter, WrapExitError(ExitCommandError, "failed to load config", err).WithCode(ErrCodeBadInput))
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return reportExitError(formatter, WrapExitError(ExitCommandError, "failed to open database", err).WithCode(ErrCodeDatabase))
	}
	defer st.Close()

	result, err := queryHistory(ctx, st, opts, args)
	if err != nil {
		return reportExitError(formatter, err)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputHistoryText(formatter.Writer, result, opts.Verbose)
	return nil
}

func queryHistory(ctx context.Context, st *store.Store, opts *HistoryOptions, args []string) (HistoryResult, error) {
	switch {
	case opts.Record != "":
		modelID, recordID, ok := strings.Cut(opts.Record, "/")
		if !ok || modelID == "" || recordID == "" {
			return HistoryResult{}, NewExitError(ExitCommandError, fmt.Sprintf("--record must be Model/id, got %q", opts.Record)).WithCode(ErrCodeBadInput)
		}
		ops, err := st.RecordHistory(ctx, modelID, recordID)
		if err != nil {
			return HistoryResult{}, WrapExitError(ExitCommandError, "failed to read record history", err).WithCode(ErrCodeDatabase)
		}
		return HistoryResult{Kind: "operations", Operations: ops}, nil

	case len(args) == 1:
		ops, err := st.ReadOperations(ctx, args[0])
		if err != nil {
			return HistoryResult{}, WrapExitError(ExitCommandError, "failed to read operations", err).WithCode(ErrCodeDatabase)
		}
		if len(ops) == 0 {
			return HistoryResult{}, NewExitError(ExitCommandError, fmt.Sprintf("no operations for transaction %s", args[0])).WithCode(ErrCodeNotFound)
		}
		return HistoryResult{Kind: "operations", Operations: ops}, nil

	default:
		txns, err := st.ReadTransactions(ctx, opts.Limit)
		if err != nil {
			return HistoryResult{}, WrapExitError(ExitCommandError, "failed to read transactions", err).WithCode(ErrCodeDatabase)
		}
		return HistoryResult{Kind: "transactions", Transactions: txns}, nil
	}
}

// outputHistoryText writes the history as text.
func outputHistoryText(w io.Writer, result HistoryResult, verbose bool) {
	if result.Kind == "transactions" {
		if len(result.Transactions) == 0 {
			fmt.Fprintln(w, "No transactions.")
			return
		}
		for _, t := range result.Transactions {
			fmt.Fprintf(w, "%s  %-12s %d operation(s)\n", t.ID, t.UserID, t.Operations)
		}
		return
	}

	if len(result.Operations) == 0 {
		fmt.Fprintln(w, "No operations.")
		return
	}
	for _, op := range result.Operations {
		fmt.Fprintf(w, "[%d] %s/%s v%d %s\n", op.Seq, op.ModelID, op.RecordID, op.Version, truncateID(op.TxnID))
		fmt.Fprintf(w, "     set: %s\n", compactJSON(op.Updates))
		if verbose {
			fmt.Fprintf(w, "     was: %s\n", compactJSON(op.Previous))
		}
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
