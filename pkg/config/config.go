// Package config resolves regcoder settings from a YAML file and the
// environment. Environment variables win over file values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/regcoder/pkg/artifacts"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Defaults.
const (
	DefaultDataDir     = "data"
	DefaultRegulation  = "eu-ai-act"
	DefaultLogLevel    = "INFO"
	DefaultConcurrency = 4
)

// Config holds the settings shared by the CLI and the pipeline.
type Config struct {
	DataDir           string `yaml:"data_dir"`
	AuditLog          string `yaml:"audit_log"`
	Regulation        string `yaml:"regulation"`
	RegulationVersion string `yaml:"regulation_version"` // semver constraint, empty for latest
	LogLevel          string `yaml:"log_level"`
	Concurrency       int    `yaml:"concurrency"`

	OTel      OTelConfig       `yaml:"otel"`
	Artifacts artifacts.Config `yaml:"artifacts"`
}

// OTelConfig toggles OpenTelemetry export.
type OTelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	setString(&c.DataDir, "REGCODER_DATA_DIR")
	setString(&c.AuditLog, "REGCODER_AUDIT_LOG")
	setString(&c.Regulation, "REGCODER_REGULATION")
	setString(&c.RegulationVersion, "REGCODER_REGULATION_VERSION")
	setString(&c.LogLevel, "REGCODER_LOG_LEVEL")
	if v := os.Getenv("REGCODER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
	if v := os.Getenv("REGCODER_OTEL_ENABLED"); v != "" {
		c.OTel.Enabled = v == "true"
	}
	setString(&c.OTel.Endpoint, "REGCODER_OTEL_ENDPOINT")
	if v := os.Getenv("REGCODER_OTEL_INSECURE"); v != "" {
		c.OTel.Insecure = v == "true"
	}

	a := &c.Artifacts
	if v := os.Getenv("ARTIFACT_STORAGE_TYPE"); v != "" {
		a.Type = artifacts.StoreType(v)
	}
	setString(&a.Dir, "REGCODER_ARTIFACT_DIR")
	setString(&a.S3.Bucket, "ARTIFACT_S3_BUCKET")
	setString(&a.S3.Region, "AWS_REGION")
	setString(&a.S3.Region, "ARTIFACT_S3_REGION")
	setString(&a.S3.Endpoint, "ARTIFACT_S3_ENDPOINT")
	setString(&a.S3.Prefix, "ARTIFACT_S3_PREFIX")
	setString(&a.GCS.Bucket, "ARTIFACT_GCS_BUCKET")
	setString(&a.GCS.Prefix, "ARTIFACT_GCS_PREFIX")
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.AuditLog == "" {
		c.AuditLog = filepath.Join(c.DataDir, "audit", "audit.jsonl")
	}
	if c.Regulation == "" {
		c.Regulation = DefaultRegulation
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Artifacts.Type == "" {
		c.Artifacts.Type = artifacts.StoreTypeFS
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = filepath.Join(c.DataDir, "artifacts")
	}
}

// Validate reports settings that would fail later at wiring time.
func (c *Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, c.Concurrency)
	}
	switch c.Artifacts.Type {
	case artifacts.StoreTypeFS, artifacts.StoreTypeS3, artifacts.StoreTypeGCS:
	default:
		return fmt.Errorf("%w: artifact storage type %q", ErrInvalidConfig, c.Artifacts.Type)
	}
	return nil
}

// SlogLevel is LogLevel as a slog.Level; unknown names fall back to Info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
