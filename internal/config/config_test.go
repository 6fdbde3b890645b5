package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Conventions.Region)
	assert.Equal(t, "web-server", cfg.Conventions.RepositoryName)
	assert.Equal(t, "ecs-tasks.amazonaws.com", cfg.Conventions.ServicePrincipal)
	assert.Equal(t, 3000, cfg.Conventions.ContainerPort)
	assert.Equal(t, 80, cfg.Conventions.ListenerPort)
	assert.Equal(t, 5432, cfg.Conventions.DatabasePort)
	assert.Equal(t, 512, cfg.Conventions.TaskMemory)
	assert.Equal(t, 256, cfg.Conventions.TaskCPU)
	assert.Equal(t, 30, cfg.Conventions.LogRetentionDays)
	assert.Equal(t, 1, cfg.Conventions.DesiredCount)
	assert.Equal(t, "/web-server/db-secret-name", cfg.Conventions.SecretNameParameter)
	assert.Equal(t, "/web-server/db-security-group-id", cfg.Conventions.DBSecurityGroupParameter)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_FromFile(t *testing.T) {
	configContent := `
conventions:
  region: "eu-west-1"
  repository_name: "api-server"
  container_port: 8080

log:
  level: "debug"
  format: "text"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Conventions.Region)
	assert.Equal(t, "api-server", cfg.Conventions.RepositoryName)
	assert.Equal(t, 8080, cfg.Conventions.ContainerPort)
	// Unset keys keep their defaults
	assert.Equal(t, 80, cfg.Conventions.ListenerPort)
	assert.Equal(t, 5432, cfg.Conventions.DatabasePort)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DEPLOY_CONVENTIONS_REGION", "ap-southeast-1")
	t.Setenv("DEPLOY_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ap-southeast-1", cfg.Conventions.Region)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conventions: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Conventions.ContainerPort)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "debug", Format: "text"}}
	logger := SetupLogger(cfg)
	require.NotNil(t, logger)

	cfg = &Config{Log: LogConfig{Level: "bogus", Format: "json"}}
	logger = SetupLogger(cfg)
	require.NotNil(t, logger)
}
