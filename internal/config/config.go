// Package config provides configuration loading and validation for lakehouse.
// Supports YAML files with LAKEHOUSE_* environment overrides, read through viper.
package config

import "time"

// Config holds all configuration for a lakehouse gateway.
type Config struct {
	Gateway       GatewayConfig       `yaml:"gateway"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Iceberg       IcebergConfig       `yaml:"iceberg"`
	State         StateConfig         `yaml:"state"`
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore"`
	Models        ModelsConfig        `yaml:"models"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type GatewayConfig struct {
	Name string `yaml:"name"`
}

// ConnectionConfig configures the DuckDB session every pooled connection is
// initialized into.
type ConnectionConfig struct {
	Database     string                  `yaml:"database"`
	Extensions   []string                `yaml:"extensions"`
	Secrets      map[string]SecretConfig `yaml:"secrets"`
	CreateSchema bool                    `yaml:"createSchema"`
	MaxOpenConns int                     `yaml:"maxOpenConns"`
}

// SecretConfig is a DuckDB secret registered on every connection.
type SecretConfig struct {
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// IcebergConfig describes the catalog every connection attaches. For the
// DUCKDB attach type, Path is the database file and defaults to
// <warehouse>.duckdb.
type IcebergConfig struct {
	Endpoint             string        `yaml:"endpoint"`
	Warehouse            string        `yaml:"warehouse"`
	Schema               string        `yaml:"schema"`
	Secret               string        `yaml:"secret"`
	AccessDelegationMode string        `yaml:"accessDelegationMode"`
	AttachType           string        `yaml:"attachType"`
	Path                 string        `yaml:"path"`
	ManagementURI        string        `yaml:"managementUri"`
	Token                string        `yaml:"token"`
	RequestTimeout       time.Duration `yaml:"requestTimeout"`
}

type StateConfig struct {
	Database string `yaml:"database"`
}

type ObjectStoreConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"accessKey"`
	SecretKey    string `yaml:"secretKey"`
	UsePathStyle bool   `yaml:"usePathStyle"`
	SeedPrefix   string `yaml:"seedPrefix"`
}

type ModelsConfig struct {
	Path      string `yaml:"path"`
	SeedsPath string `yaml:"seedsPath"`
	Dialect   string `yaml:"dialect"`
	Start     string `yaml:"start"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr"`
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
}

// Attach types understood by the connection initializer.
const (
	AttachTypeIceberg = "ICEBERG"
	AttachTypeDuckDB  = "DUCKDB"
)

// Access delegation modes for Iceberg attachments.
const (
	AccessDelegationNone              = "none"
	AccessDelegationVendedCredentials = "vended_credentials"
)

// Default returns a Config matching the local docker-compose stack.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Name: "local",
		},
		Connection: ConnectionConfig{
			Database:   ":memory:",
			Extensions: []string{"iceberg"},
			Secrets: map[string]SecretConfig{
				"lakekeeper_secret": {
					Type: "iceberg",
					Options: map[string]string{
						"token": "dummy_token",
					},
				},
				"minio_secret": {
					Type: "s3",
					Options: map[string]string{
						"key_id":    "minio-root-user",
						"secret":    "minio-root-password",
						"endpoint":  "localhost:9000",
						"url_style": "path",
						"use_ssl":   "false",
						"region":    "local-01",
					},
				},
			},
			MaxOpenConns: 4,
		},
		Iceberg: IcebergConfig{
			Endpoint:             "http://localhost:8181/catalog",
			Warehouse:            "warehouse",
			Schema:               "demo",
			Secret:               "lakekeeper_secret",
			AccessDelegationMode: AccessDelegationNone,
			AttachType:           AttachTypeIceberg,
			ManagementURI:        "http://localhost:8181/management",
			RequestTimeout:       10 * time.Second,
		},
		State: StateConfig{
			Database: "state.db",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:     "http://localhost:9000",
			Bucket:       "examples",
			Region:       "local-01",
			AccessKey:    "minio-root-user",
			SecretKey:    "minio-root-password",
			UsePathStyle: true,
			SeedPrefix:   "seeds",
		},
		Models: ModelsConfig{
			Path:      "transform/models",
			SeedsPath: "transform/seeds",
			Dialect:   "duckdb",
			Start:     "2024-01-01",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}
