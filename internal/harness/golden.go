package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cascade/internal/ir"
)

// TraceJSON renders the trace of a scenario run as canonical JSON.
// Transaction ids are left out so a trace only changes when the committed
// operations do.
func TraceJSON(scenarioName string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Trace))
	for i, st := range result.Trace {
		ops := make([]any, len(st.Operations))
		for j, op := range st.Operations {
			ops[j] = map[string]any{
				"model":   op.Model,
				"record":  op.Record,
				"updates": op.Updates,
			}
		}
		warnings := make([]any, len(st.Warnings))
		for j, w := range st.Warnings {
			warnings[j] = w
		}
		steps[i] = map[string]any{
			"step":       st.Step,
			"action":     st.Action,
			"operations": ops,
			"warnings":   warnings,
		}
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"steps":    steps,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, models []ir.ModelSpec) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, models)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := TraceJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
