package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenario copies a scenario fixture into dir.
func copyScenario(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(scenarioFixture, name))
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, _, err := runCLI(t, "test", schemaFixture)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestTestCommand_MissingScenariosDir(t *testing.T) {
	out, _, err := runCLI(t, "test", schemaFixture, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommand_BadSchema(t *testing.T) {
	_, _, err := runCLI(t, "test", filepath.Join(t.TempDir(), "missing"), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, _, err := runCLI(t, "test", schemaFixture, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_EmptyDirJSON(t *testing.T) {
	out, _, err := runCLI(t, "--format", "json", "test", schemaFixture, t.TempDir())
	require.NoError(t, err)

	status, result := decodeResponse[TestResult](t, out)
	assert.Equal(t, "ok", status)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.Scenarios)
}

func TestTestCommand_Fixtures(t *testing.T) {
	out, _, err := runCLI(t, "test", schemaFixture, scenarioFixture)
	require.NoError(t, err, "output: %s", out)
	assert.Contains(t, out, "✓ invoice_set_price")
	assert.Contains(t, out, "✓ invoice_unlink")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_FixturesJSON(t *testing.T) {
	out, _, err := runCLI(t, "--format", "json", "test", schemaFixture, scenarioFixture, "--filter", "*_unlink")
	require.NoError(t, err, "output: %s", out)

	status, result := decodeResponse[TestResult](t, out)
	assert.Equal(t, "ok", status)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "invoice_unlink", result.Scenarios[0].Name)
	assert.True(t, result.Scenarios[0].Pass)
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "invoice_set_price.yaml")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "invoice_set_price.golden"), []byte(`{"stale":true}`), 0644))

	out, _, err := runCLI(t, "--format", "json", "test", schemaFixture, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_TEST_FAILED")

	_, result := decodeResponse[TestResult](t, out)
	require.Len(t, result.Scenarios, 1)
	assert.False(t, result.Scenarios[0].Pass)
	assert.Contains(t, result.Scenarios[0].Errors[0], "does not match golden file")
}

func TestTestCommand_Update(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "invoice_set_price.yaml")

	_, _, err := runCLI(t, "test", schemaFixture, dir, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, "golden", "invoice_set_price.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(scenarioFixture, "golden", "invoice_set_price.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// The regenerated golden passes on the next run.
	out, _, err := runCLI(t, "test", schemaFixture, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ invoice_set_price")
}

func TestTestCommand_FailingAssertion(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_total
seed:
  records:
    - {model: Invoice, id: i1, fields: {number: INV-1}}
    - {model: Flight, id: f1, fields: {carrier: AF, price: 100}}
  links:
    - {model: Invoice, id: i1, field: flights, to: f1}
steps:
  - set: {model: Flight, id: f1, fields: {price: 150}}
assertions:
  - type: record_equals
    model: Invoice
    id: i1
    expect: {totalPrice: 999}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_total.yaml"), []byte(scenario), 0644))

	out, _, err := runCLI(t, "test", schemaFixture, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_total")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}
