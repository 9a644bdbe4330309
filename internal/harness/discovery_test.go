package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_link.yaml", "a_set.yml", "notes.txt", "nested/c_link.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	paths, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_set.yml"),
		filepath.Join(dir, "b_link.yaml"),
		filepath.Join(dir, "nested", "c_link.yaml"),
	}, paths)

	paths, err = FindScenarios(dir, "*link")
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestFindScenarios_NotADirectory(t *testing.T) {
	_, err := FindScenarios("/nonexistent", "")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = FindScenarios(file, "")
	assert.ErrorContains(t, err, "not a directory")
}

func TestFindScenarios_BadPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x"), 0644))

	_, err := FindScenarios(dir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "link.golden"), GoldenPath(filepath.Join("s", "link.yaml")))
}
