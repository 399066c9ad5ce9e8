package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Iceberg.Endpoint != "http://localhost:8181/catalog" {
		t.Errorf("expected default endpoint http://localhost:8181/catalog, got %s", cfg.Iceberg.Endpoint)
	}
	if cfg.Iceberg.Warehouse != "warehouse" || cfg.Iceberg.Schema != "demo" {
		t.Errorf("expected default context warehouse.demo, got %s.%s", cfg.Iceberg.Warehouse, cfg.Iceberg.Schema)
	}
	if cfg.Iceberg.AccessDelegationMode != AccessDelegationNone {
		t.Errorf("expected access delegation none, got %s", cfg.Iceberg.AccessDelegationMode)
	}
	if cfg.Connection.Database != ":memory:" {
		t.Errorf("expected in-memory database, got %s", cfg.Connection.Database)
	}
	if _, ok := cfg.Connection.Secrets["lakekeeper_secret"]; !ok {
		t.Error("expected lakekeeper_secret to be configured by default")
	}
	if !cfg.ObjectStore.UsePathStyle {
		t.Error("expected path-style addressing by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
iceberg:
  warehouse: lake
  schema: analytics
observability:
  logLevel: debug
`))
	require.NoError(t, err)
	assert.Equal(t, "lake", cfg.Iceberg.Warehouse)
	assert.Equal(t, "analytics", cfg.Iceberg.Schema)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	// untouched sections keep their defaults
	assert.Equal(t, "http://localhost:8181/catalog", cfg.Iceberg.Endpoint)
	assert.Equal(t, "state.db", cfg.State.Database)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("iceberg: [unterminated"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Chdir(t.TempDir())
	t.Setenv("LAKEHOUSE_ICEBERG_WAREHOUSE", "env_wh")
	t.Setenv("LAKEHOUSE_CREATE_SCHEMA", "true")
	t.Setenv("LAKEHOUSE_DUCKDB_MAX_OPEN_CONNS", "8")
	t.Setenv("LAKEHOUSE_DUCKDB_EXTENSIONS", "iceberg,httpfs")
	t.Setenv("LAKEHOUSE_ICEBERG_REQUEST_TIMEOUT", "3s")
	t.Setenv("LAKEHOUSE_S3_BUCKET", "seeds-bucket")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env_wh", cfg.Iceberg.Warehouse)
	assert.True(t, cfg.Connection.CreateSchema)
	assert.Equal(t, 8, cfg.Connection.MaxOpenConns)
	assert.Equal(t, []string{"iceberg", "httpfs"}, cfg.Connection.Extensions)
	assert.Equal(t, 3*time.Second, cfg.Iceberg.RequestTimeout)
	assert.Equal(t, "seeds-bucket", cfg.ObjectStore.Bucket)
	assert.Equal(t, "demo", cfg.Iceberg.Schema)
	assert.Contains(t, cfg.Connection.Secrets, "minio_secret")
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Chdir(t.TempDir())
	t.Setenv("LAKEHOUSE_CREATE_SCHEMA", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: decode")
}

func TestLoadWith_FlagBeatsEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lakehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  logLevel: warn\n  logFormat: json\n"), 0o644))
	t.Setenv("LAKEHOUSE_LOG_LEVEL", "error")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "debug"}))

	v := NewViper()
	require.NoError(t, v.BindPFlag(KeyLogLevel, flags.Lookup("log-level")))
	cfg, err := LoadWith(v, path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogFormat)

	// Unchanged flags fall back to env, then file.
	v = NewViper()
	flags = pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, v.BindPFlag(KeyLogLevel, flags.Lookup("log-level")))
	cfg, err = LoadWith(v, path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Observability.LogLevel)
}

func TestParse_SecretsMergeWithDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
connection:
  secrets:
    extra_secret:
      type: s3
      options:
        region: eu-west-1
`))
	require.NoError(t, err)
	require.Contains(t, cfg.Connection.Secrets, "extra_secret")
	assert.Equal(t, "s3", cfg.Connection.Secrets["extra_secret"].Type)
	assert.Equal(t, "eu-west-1", cfg.Connection.Secrets["extra_secret"].Options["region"])
	assert.Contains(t, cfg.Connection.Secrets, "lakekeeper_secret")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"missing schema", func(c *Config) { c.Iceberg.Schema = "" }, false},
		{"missing warehouse", func(c *Config) { c.Iceberg.Warehouse = "" }, false},
		{"unknown attach type", func(c *Config) { c.Iceberg.AttachType = "HIVE" }, false},
		{"iceberg without endpoint", func(c *Config) { c.Iceberg.Endpoint = "" }, false},
		{"duckdb without endpoint", func(c *Config) {
			c.Iceberg.AttachType = AttachTypeDuckDB
			c.Iceberg.Endpoint = ""
		}, true},
		{"vended credentials", func(c *Config) { c.Iceberg.AccessDelegationMode = AccessDelegationVendedCredentials }, true},
		{"bad delegation mode", func(c *Config) { c.Iceberg.AccessDelegationMode = "always" }, false},
		{"secret without type", func(c *Config) {
			c.Connection.Secrets["extra"] = SecretConfig{}
		}, false},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, false},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, false},
		{"warning log level", func(c *Config) { c.Observability.LogLevel = "warning" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lakehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("iceberg:\n  schema: staging\n"), 0o644))

	t.Setenv("LAKEHOUSE_ICEBERG_WAREHOUSE", "from_env")
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Iceberg.Schema)
	assert.Equal(t, "from_env", cfg.Iceberg.Warehouse)
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_FromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  name: ci\n"), 0o644))
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ci", cfg.Gateway.Name)
}
