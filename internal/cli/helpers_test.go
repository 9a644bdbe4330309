package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	schemaFixture   = filepath.Join("..", "..", "testdata", "schema")
	datasetFixture  = filepath.Join("..", "..", "testdata", "dataset.yaml")
	scenarioFixture = filepath.Join("..", "..", "testdata", "scenarios")
)

// runCLI executes the root command with args and returns stdout, stderr
// and the command error.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// dataArgs prefixes args with a temporary database and the invoice schema.
func dataArgs(db string, args ...string) []string {
	return append([]string{"--db", db, "--schema", schemaFixture, "--user", "tester"}, args...)
}

// writeCUE writes one CUE file into a fresh directory.
func writeCUE(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(content), 0644))
	return dir
}

// decodeResponse decodes a JSON CLIResponse whose data has type T.
func decodeResponse[T any](t *testing.T, out string) (string, T) {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp.Status, resp.Data
}
