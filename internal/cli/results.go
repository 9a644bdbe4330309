package cli

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
)

// OperationView is one applied update in command output.
type OperationView struct {
	Model   string      `json:"model"`
	Record  string      `json:"record"`
	Updates ir.IRObject `json:"updates"`
}

// FailureView is one update storage rejected.
type FailureView struct {
	Model  string `json:"model"`
	Record string `json:"record"`
	Error  string `json:"error"`
}

// WarningView is a propagation warning.
type WarningView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
	Record  string `json:"record,omitempty"`
	Field   string `json:"field,omitempty"`
}

// ResultView is the output of one engine operation.
type ResultView struct {
	TransactionID string          `json:"txn_id"`
	Applied       []OperationView `json:"applied"`
	Failed        []FailureView   `json:"failed,omitempty"`
	Warnings      []WarningView   `json:"warnings,omitempty"`
}

// newResultView flattens an engine result for output.
func newResultView(res engine.Result) ResultView {
	view := ResultView{
		TransactionID: res.TransactionID,
		Applied:       make([]OperationView, 0, len(res.Applied)),
	}
	for _, op := range res.Applied {
		view.Applied = append(view.Applied, OperationView{Model: op.ModelID, Record: op.RecordID, Updates: op.Updates})
	}
	for _, f := range res.Failed {
		view.Failed = append(view.Failed, FailureView{Model: f.Op.ModelID, Record: f.Op.RecordID, Error: f.Err.Error()})
	}
	for _, w := range res.Warnings {
		view.Warnings = append(view.Warnings, WarningView{
			Code:    string(w.Code),
			Message: w.Message,
			Model:   w.ModelID,
			Record:  w.RecordID,
			Field:   w.FieldID,
		})
	}
	return view
}

// outputResults writes the results of a data command. Storage failures
// make the command fail with ExitFailure after everything is printed.
func outputResults(formatter *OutputFormatter, results []engine.Result) error {
	views := make([]ResultView, len(results))
	failed := 0
	for i, res := range results {
		views[i] = newResultView(res)
		failed += len(views[i].Failed)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(views); err != nil {
			return err
		}
	} else {
		for _, v := range views {
			writeResultText(formatter, v)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d operation(s) failed", failed))
	}
	return nil
}

func writeResultText(formatter *OutputFormatter, v ResultView) {
	w := formatter.Writer
	mark := "✓"
	if len(v.Failed) > 0 {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s: %d operation(s)\n", mark, v.TransactionID, len(v.Applied))
	for _, op := range v.Applied {
		fmt.Fprintf(w, "  %s/%s %s\n", op.Model, op.Record, compactJSON(op.Updates))
	}
	for _, f := range v.Failed {
		fmt.Fprintf(w, "  failed %s/%s: %s\n", f.Model, f.Record, f.Error)
	}
	for _, warn := range v.Warnings {
		target := warn.Model + "/" + warn.Record
		if warn.Field != "" {
			target += "." + warn.Field
		}
		fmt.Fprintf(w, "  warning %s %s: %s\n", warn.Code, target, warn.Message)
	}
}

// compactJSON renders a value on one line with sorted keys.
func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
