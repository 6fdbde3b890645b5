package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Error Classification Tests
// =============================================================================

func TestRootCommand_BadConfigIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conventions: ["), 0o644))

	root := newRootCommand()
	root.SetArgs([]string{"check", "--config", path, "--stage", "staging"})

	err := root.Execute()
	require.Error(t, err)

	var cfgErr *configError
	assert.True(t, errors.As(err, &cfgErr), "config-load failures must classify as configError")
}

func TestRootCommand_MissingStage(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"output"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--stage is required")

	var cfgErr *configError
	assert.False(t, errors.As(err, &cfgErr), "flag validation is a run error, not a config error")
}

func TestConfigError_Unwrap(t *testing.T) {
	inner := errors.New("bad yaml")
	err := &configError{err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "configuration error")
}
