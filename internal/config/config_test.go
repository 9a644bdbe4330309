package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Engine.MaxDepth)
	assert.Equal(t, 10000, cfg.Engine.MaxSteps)
	assert.Equal(t, 60*time.Second, cfg.Engine.CacheTTL)
	assert.True(t, cfg.Engine.OptimisticLocking)
	assert.Empty(t, cfg.Directory.Model)
}

func TestDecode_Empty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecode_OverridesKeepDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
database: /tmp/app.db
engine:
  max_depth: 4
  cache_ttl: 2m
  optimistic_locking: false
directory:
  model: User
  name_field: name
`))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/app.db", cfg.Database)
	assert.Equal(t, "./schema", cfg.Schema, "unset key keeps default")
	assert.Equal(t, 4, cfg.Engine.MaxDepth)
	assert.Equal(t, 10000, cfg.Engine.MaxSteps)
	assert.Equal(t, 2*time.Minute, cfg.Engine.CacheTTL)
	assert.False(t, cfg.Engine.OptimisticLocking)
	assert.Equal(t, Directory{Model: "User", NameField: "name"}, cfg.Directory)
}

func TestDecode_UnknownKey(t *testing.T) {
	_, err := Decode(strings.NewReader("databse: x.db\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse")
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader(`
engine:
  max_depth: 0
  max_steps: -1
directory:
  model: User
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_depth")
	assert.Contains(t, err.Error(), "max_steps")
	assert.Contains(t, err.Error(), "directory.model")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cascade.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_id: ops\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.UserID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
