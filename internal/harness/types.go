package harness

import (
	"fmt"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
)

// StepTrace records what one scenario step committed.
type StepTrace struct {
	Step          int              `json:"step"`
	Action        string           `json:"action"`
	TransactionID string           `json:"txn_id,omitempty"`
	Operations    []OperationTrace `json:"operations"`
	Warnings      []string         `json:"warnings"`
}

// OperationTrace is one applied record update.
type OperationTrace struct {
	Model   string      `json:"model"`
	Record  string      `json:"record"`
	Updates ir.IRObject `json:"updates"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions match.
	Pass bool `json:"pass"`

	// Trace holds the committed operations of every step, in order.
	Trace []StepTrace `json:"trace"`

	// Errors contains assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends the trace of one step built from its engine results.
func (r *Result) AddStep(step int, action string, results ...engine.Result) {
	st := StepTrace{
		Step:       step,
		Action:     action,
		Operations: []OperationTrace{},
		Warnings:   []string{},
	}
	for _, res := range results {
		if st.TransactionID == "" {
			st.TransactionID = res.TransactionID
		}
		for _, op := range res.Applied {
			st.Operations = append(st.Operations, OperationTrace{
				Model:   op.ModelID,
				Record:  op.RecordID,
				Updates: op.Updates,
			})
		}
		for _, w := range res.Warnings {
			st.Warnings = append(st.Warnings, warningText(w))
		}
	}
	r.Trace = append(r.Trace, st)
}

// warningText renders a warning without its scope id, which changes with
// the token generator.
func warningText(w *engine.RuntimeError) string {
	switch {
	case w.FieldID != "":
		return fmt.Sprintf("%s %s/%s.%s", w.Code, w.ModelID, w.RecordID, w.FieldID)
	case w.ModelID != "":
		return fmt.Sprintf("%s %s/%s", w.Code, w.ModelID, w.RecordID)
	}
	return string(w.Code)
}

// Operations returns the operations of one step, or of every step when
// step is negative.
func (r *Result) Operations(step int) []OperationTrace {
	if step >= 0 {
		if step >= len(r.Trace) {
			return nil
		}
		return r.Trace[step].Operations
	}
	var all []OperationTrace
	for _, st := range r.Trace {
		all = append(all, st.Operations...)
	}
	return all
}
