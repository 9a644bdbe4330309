package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/testutil"
)

func TestGoldenScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario, testutil.InvoiceModels())
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceJSON_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/invoice_set_price.yaml")
	require.NoError(t, err)

	first, err := Run(scenario, testutil.InvoiceModels())
	require.NoError(t, err)
	second, err := Run(scenario, testutil.InvoiceModels())
	require.NoError(t, err)

	a, err := TraceJSON(scenario.Name, first)
	require.NoError(t, err)
	b, err := TraceJSON(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestTraceJSON_Format(t *testing.T) {
	r := NewResult()
	r.AddStep(0, "set", engine.Result{
		TransactionID: "txn-9",
		Applied: []ir.Operation{
			{ModelID: "Flight", RecordID: "f1", Updates: ir.IRObject{"price": ir.IRNumber(1.5), "carrier": ir.IRString("AF")}},
		},
		Warnings: []*engine.RuntimeError{{Code: engine.ErrCodeDepthExceeded, ModelID: "Flight", RecordID: "f1"}},
	})

	data, err := TraceJSON("fmt", r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario":"fmt","steps":[{"action":"set","operations":[{"model":"Flight","record":"f1","updates":{"carrier":"AF","price":1.5}}],"step":0,"warnings":["DEPTH_EXCEEDED Flight/f1"]}]}`,
		string(data))
	assert.NotContains(t, string(data), "txn-9")
}
