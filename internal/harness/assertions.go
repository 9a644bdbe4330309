package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []StepTrace // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, st := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s: %d operation(s)\n", st.Step, st.Action, len(st.Operations))
			for _, op := range st.Operations {
				fmt.Fprintf(&buf, "      %s/%s %s\n", op.Model, op.Record, renderObject(op.Updates))
			}
		}
	}

	return buf.String()
}

func renderObject(obj ir.IRObject) string {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return fmt.Sprintf("%v", obj)
	}
	return string(data)
}

func stepLabel(step *int) string {
	if step == nil {
		return "all steps"
	}
	return fmt.Sprintf("step %d", *step)
}

func selected(result *Result, step *int) []OperationTrace {
	if step == nil {
		return result.Operations(-1)
	}
	return result.Operations(*step)
}

// expectedObject converts YAML-decoded expectations to IR values.
func expectedObject(expect map[string]any) (ir.IRObject, error) {
	v, err := ir.FromGo(expect)
	if err != nil {
		return nil, err
	}
	obj, _ := v.(ir.IRObject)
	return obj, nil
}

// mismatches lists the expected fields actual does not hold. Subset match.
func mismatches(actual, expected ir.IRObject) []string {
	var out []string
	for _, k := range expected.SortedKeys() {
		got, ok := actual[k]
		if !ok {
			out = append(out, fmt.Sprintf("%s: missing", k))
			continue
		}
		if !ir.Equal(got, expected[k]) {
			out = append(out, fmt.Sprintf("%s: got %s, want %s", k, renderValue(got), renderValue(expected[k])))
		}
	}
	return out
}

func renderValue(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// assertRecordEquals checks stored field values of one record.
func assertRecordEquals(ctx context.Context, st *store.Store, assertion Assertion) error {
	expected, err := expectedObject(assertion.Expect)
	if err != nil {
		return fmt.Errorf("record_equals: %w", err)
	}

	rec, err := st.Get(ctx, assertion.Model, assertion.ID)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertRecordEquals,
			Expected: fmt.Sprintf("record %s/%s", assertion.Model, assertion.ID),
			Actual:   "record not found",
		}
	}
	if err != nil {
		return fmt.Errorf("record_equals: %w", err)
	}

	if diff := mismatches(rec.Fields, expected); len(diff) > 0 {
		return &AssertionError{
			Type:     AssertRecordEquals,
			Expected: fmt.Sprintf("%s/%s %s", assertion.Model, assertion.ID, renderObject(expected)),
			Actual:   strings.Join(diff, "; "),
		}
	}
	return nil
}

// assertOperationCount checks how many operations were applied.
func assertOperationCount(result *Result, assertion Assertion) error {
	ops := selected(result, assertion.Step)
	if len(ops) != assertion.Count {
		return &AssertionError{
			Type:     AssertOperationCount,
			Expected: fmt.Sprintf("%d operation(s) in %s", assertion.Count, stepLabel(assertion.Step)),
			Actual:   fmt.Sprintf("%d operation(s)", len(ops)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertOperationContains checks that some operation on the record
// carried the expected updates.
func assertOperationContains(result *Result, assertion Assertion) error {
	expected, err := expectedObject(assertion.Expect)
	if err != nil {
		return fmt.Errorf("operation_contains: %w", err)
	}

	for _, op := range selected(result, assertion.Step) {
		if op.Model != assertion.Model || op.Record != assertion.ID {
			continue
		}
		if len(mismatches(op.Updates, expected)) == 0 {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertOperationContains,
		Expected: fmt.Sprintf("update of %s/%s with %s in %s", assertion.Model, assertion.ID, renderObject(expected), stepLabel(assertion.Step)),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertNoOperations checks that a step committed nothing.
func assertNoOperations(result *Result, assertion Assertion) error {
	ops := selected(result, assertion.Step)
	if len(ops) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoOperations,
		Expected: fmt.Sprintf("no operations in %s", stepLabel(assertion.Step)),
		Actual:   fmt.Sprintf("%d operation(s)", len(ops)),
		Trace:    result.Trace,
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for record_equals assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRecordEquals:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: record_equals requires database context", i)
			} else {
				err = assertRecordEquals(actx.Ctx, actx.Store, assertion)
			}
		case AssertOperationCount:
			err = assertOperationCount(result, assertion)
		case AssertOperationContains:
			err = assertOperationContains(result, assertion)
		case AssertNoOperations:
			err = assertNoOperations(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
