package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "LAKEHOUSE_CONFIG"

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "lakehouse.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LAKEHOUSE"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// envBindings maps config keys to the environment variables that override
// them. Keys not listed here still pick up LAKEHOUSE_<SECTION>_<KEY>.
var envBindings = map[string]string{
	"gateway.name":                 "LAKEHOUSE_GATEWAY",
	"connection.database":          "LAKEHOUSE_DUCKDB_DATABASE",
	"connection.extensions":        "LAKEHOUSE_DUCKDB_EXTENSIONS",
	"connection.createSchema":      "LAKEHOUSE_CREATE_SCHEMA",
	"connection.maxOpenConns":      "LAKEHOUSE_DUCKDB_MAX_OPEN_CONNS",
	"iceberg.endpoint":             "LAKEHOUSE_ICEBERG_ENDPOINT",
	"iceberg.warehouse":            "LAKEHOUSE_ICEBERG_WAREHOUSE",
	"iceberg.schema":               "LAKEHOUSE_ICEBERG_SCHEMA",
	"iceberg.secret":               "LAKEHOUSE_ICEBERG_SECRET",
	"iceberg.accessDelegationMode": "LAKEHOUSE_ICEBERG_ACCESS_DELEGATION_MODE",
	"iceberg.attachType":           "LAKEHOUSE_ICEBERG_ATTACH_TYPE",
	"iceberg.path":                 "LAKEHOUSE_ICEBERG_PATH",
	"iceberg.managementUri":        "LAKEHOUSE_ICEBERG_MANAGEMENT_URI",
	"iceberg.token":                "LAKEHOUSE_ICEBERG_TOKEN",
	"iceberg.requestTimeout":       "LAKEHOUSE_ICEBERG_REQUEST_TIMEOUT",
	"state.database":               "LAKEHOUSE_STATE_DATABASE",
	"objectStore.endpoint":         "LAKEHOUSE_S3_ENDPOINT",
	"objectStore.bucket":           "LAKEHOUSE_S3_BUCKET",
	"objectStore.region":           "LAKEHOUSE_S3_REGION",
	"objectStore.accessKey":        "LAKEHOUSE_S3_ACCESS_KEY",
	"objectStore.secretKey":        "LAKEHOUSE_S3_SECRET_KEY",
	"objectStore.usePathStyle":     "LAKEHOUSE_S3_USE_PATH_STYLE",
	"objectStore.seedPrefix":       "LAKEHOUSE_S3_SEED_PREFIX",
	"models.path":                  "LAKEHOUSE_MODELS_PATH",
	"models.seedsPath":             "LAKEHOUSE_SEEDS_PATH",
	"models.dialect":               "LAKEHOUSE_MODELS_DIALECT",
	"models.start":                 "LAKEHOUSE_MODELS_START",
	"observability.metricsAddr":    "LAKEHOUSE_METRICS_ADDR",
	"observability.logLevel":       "LAKEHOUSE_LOG_LEVEL",
	"observability.logFormat":      "LAKEHOUSE_LOG_FORMAT",
}

// Keys used by callers that bind flags onto the loader's viper instance.
const (
	KeyLogLevel    = "observability.logLevel"
	KeyLogFormat   = "observability.logFormat"
	KeyMetricsAddr = "observability.metricsAddr"
)

// NewViper returns a viper instance with the LAKEHOUSE_* environment
// bindings in place. Callers may bind flags on it before LoadWith.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			panic(fmt.Sprintf("config: bind %s: %v", key, err))
		}
	}
	return v
}

// Load reads the file named by LAKEHOUSE_CONFIG, falling back to
// ./lakehouse.yaml. When neither exists the defaults are used. Environment
// overrides are applied last.
func Load() (*Config, error) {
	return LoadWith(NewViper(), "")
}

// LoadFromPath reads a YAML file over the defaults and applies environment
// overrides. An empty path behaves like Load.
func LoadFromPath(path string) (*Config, error) {
	return LoadWith(NewViper(), path)
}

// LoadWith reads path (or the file Load would find) into v and decodes v
// over the defaults. Flags bound on v take precedence over the environment,
// which takes precedence over the file.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without applying environment
// overrides or validating.
func Parse(data []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return decode(v)
}

// decode unmarshals v onto Default() using the yaml struct tags.
func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the session cannot start with.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Iceberg.Warehouse == "" {
		add("iceberg.warehouse is required")
	}
	if c.Iceberg.Schema == "" {
		add("iceberg.schema is required; the default context is always catalog.schema")
	}
	switch strings.ToUpper(c.Iceberg.AttachType) {
	case AttachTypeIceberg:
		if c.Iceberg.Endpoint == "" {
			add("iceberg.endpoint is required for attach type %s", AttachTypeIceberg)
		}
		switch c.Iceberg.AccessDelegationMode {
		case AccessDelegationNone, AccessDelegationVendedCredentials:
		default:
			add("iceberg.accessDelegationMode %q is not one of %s, %s",
				c.Iceberg.AccessDelegationMode, AccessDelegationNone, AccessDelegationVendedCredentials)
		}
	case AttachTypeDuckDB:
	default:
		add("iceberg.attachType %q is not one of %s, %s", c.Iceberg.AttachType, AttachTypeIceberg, AttachTypeDuckDB)
	}
	for name, s := range c.Connection.Secrets {
		if s.Type == "" {
			add("connection.secrets.%s.type is required", name)
		}
	}
	if c.Connection.MaxOpenConns < 0 {
		add("connection.maxOpenConns must not be negative")
	}
	if c.State.Database == "" {
		add("state.database is required")
	}
	switch strings.ToLower(c.Observability.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		add("observability.logLevel %q is not one of debug, info, warn, error", c.Observability.LogLevel)
	}
	switch strings.ToLower(c.Observability.LogFormat) {
	case "", "text", "json":
	default:
		add("observability.logFormat %q is not one of text, json", c.Observability.LogFormat)
	}

	return errors.Join(errs...)
}
