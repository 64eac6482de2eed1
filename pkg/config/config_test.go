package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/regcoder/pkg/artifacts"
	"github.com/Mindburn-Labs/regcoder/pkg/config"
)

var envKeys = []string{
	"REGCODER_DATA_DIR", "REGCODER_AUDIT_LOG", "REGCODER_REGULATION",
	"REGCODER_REGULATION_VERSION", "REGCODER_LOG_LEVEL", "REGCODER_CONCURRENCY",
	"REGCODER_OTEL_ENABLED", "REGCODER_OTEL_ENDPOINT", "REGCODER_ARTIFACT_DIR",
	"ARTIFACT_STORAGE_TYPE", "ARTIFACT_S3_BUCKET", "ARTIFACT_S3_REGION", "AWS_REGION",
	"ARTIFACT_S3_ENDPOINT", "ARTIFACT_S3_PREFIX", "ARTIFACT_GCS_BUCKET", "ARTIFACT_GCS_PREFIX",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

// TestLoad_Defaults verifies that Load() returns usable defaults when no
// environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := config.Load()

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "audit", "audit.jsonl"), cfg.AuditLog)
	assert.Equal(t, "eu-ai-act", cfg.Regulation)
	assert.Empty(t, cfg.RegulationVersion)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, config.DefaultConcurrency, cfg.Concurrency)
	assert.False(t, cfg.OTel.Enabled)
	assert.Equal(t, artifacts.StoreTypeFS, cfg.Artifacts.Type)
	assert.Equal(t, filepath.Join("data", "artifacts"), cfg.Artifacts.Dir)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REGCODER_DATA_DIR", "/var/lib/regcoder")
	t.Setenv("REGCODER_LOG_LEVEL", "DEBUG")
	t.Setenv("REGCODER_OTEL_ENABLED", "true")
	t.Setenv("REGCODER_OTEL_ENDPOINT", "collector:4317")
	t.Setenv("REGCODER_CONCURRENCY", "16")
	t.Setenv("ARTIFACT_STORAGE_TYPE", "s3")
	t.Setenv("ARTIFACT_S3_BUCKET", "evidence")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg := config.Load()

	assert.Equal(t, "/var/lib/regcoder/audit/audit.jsonl", filepath.ToSlash(cfg.AuditLog))
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, "collector:4317", cfg.OTel.Endpoint)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, artifacts.StoreTypeS3, cfg.Artifacts.Type)
	assert.Equal(t, "evidence", cfg.Artifacts.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Artifacts.S3.Region)
}

func TestLoad_ExplicitAuditLog(t *testing.T) {
	clearEnv(t)
	t.Setenv("REGCODER_AUDIT_LOG", "/tmp/chain.jsonl")

	assert.Equal(t, "/tmp/chain.jsonl", config.Load().AuditLog)
}

const fileConfig = `
data_dir: /srv/regcoder
regulation_version: "^1.0"
log_level: WARN
concurrency: 2
otel:
  enabled: true
  endpoint: otel:4317
artifacts:
  type: fs
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regcoder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	cfg, err := config.LoadFile(writeConfig(t, fileConfig))
	require.NoError(t, err)

	assert.Equal(t, "/srv/regcoder", cfg.DataDir)
	assert.Equal(t, "/srv/regcoder/artifacts", filepath.ToSlash(cfg.Artifacts.Dir))
	assert.Equal(t, "^1.0", cfg.RegulationVersion)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.Equal(t, 2, cfg.Concurrency)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, "eu-ai-act", cfg.Regulation)
}

func TestResolve_EnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("REGCODER_LOG_LEVEL", "ERROR")
	t.Setenv("REGCODER_OTEL_ENABLED", "false")

	cfg, err := config.Resolve(writeConfig(t, fileConfig))
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.LogLevel)
	assert.False(t, cfg.OTel.Enabled)
	assert.Equal(t, "/srv/regcoder", cfg.DataDir, "file value kept when env is unset")
}

func TestResolve_NoFile(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DataDir)
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = config.LoadFile(writeConfig(t, "data_dir: [unclosed"))
	require.Error(t, err)

	_, err = config.LoadFile(writeConfig(t, "log_level: LOUD\n"))
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = config.LoadFile(writeConfig(t, "artifacts:\n  type: tape\n"))
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = config.LoadFile(writeConfig(t, "concurrency: -1\n"))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSlogLevel_Fallback(t *testing.T) {
	cfg := &config.Config{LogLevel: "chatty"}
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}
