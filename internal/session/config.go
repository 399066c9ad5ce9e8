package session

import (
	"strings"

	"github.com/quayside-data/lakehouse/internal/config"
)

// NewInitializer builds the connection initializer described by cfg.
func NewInitializer(cfg *config.Config) (*Initializer, error) {
	def, err := NewDefaultContext(cfg.Iceberg.Warehouse, cfg.Iceberg.Schema)
	if err != nil {
		return nil, err
	}

	attachType := AttachType(strings.ToUpper(cfg.Iceberg.AttachType))
	att := CatalogAttachment{
		Name:             cfg.Iceberg.Warehouse,
		Warehouse:        cfg.Iceberg.Warehouse,
		Type:             attachType,
		Endpoint:         cfg.Iceberg.Endpoint,
		Secret:           cfg.Iceberg.Secret,
		AccessDelegation: cfg.Iceberg.AccessDelegationMode,
	}

	in := &Initializer{
		Attachment:   att,
		Default:      def,
		CreateSchema: cfg.Connection.CreateSchema,
	}
	if attachType == AttachDuckDB {
		in.Attachment.Warehouse = cfg.Iceberg.Path
		if in.Attachment.Warehouse == "" {
			in.Attachment.Warehouse = cfg.Iceberg.Warehouse + ".duckdb"
		}
	}
	if attachType == AttachIceberg {
		in.Extensions = cfg.Connection.Extensions
		for name, s := range cfg.Connection.Secrets {
			in.Secrets = append(in.Secrets, Secret{Name: name, Type: s.Type, Options: s.Options})
		}
	}
	return in, nil
}

// OptionsFromConfig returns Open options for cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	in, err := NewInitializer(cfg)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Database:     cfg.Connection.Database,
		Initializer:  in,
		MaxOpenConns: cfg.Connection.MaxOpenConns,
	}, nil
}
