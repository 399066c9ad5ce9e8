package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-data/lakehouse/internal/config"
	"github.com/quayside-data/lakehouse/internal/logging"
)

type fakeExecer struct {
	mu     sync.Mutex
	stmts  []string
	failOn string
	err    error
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, query)
	if f.failOn != "" && strings.HasPrefix(query, f.failOn) {
		return nil, f.err
	}
	return driver.RowsAffected(0), nil
}

type initCounter struct {
	ok, failed int
}

func (c *initCounter) RecordInit(_ float64, success bool) {
	if success {
		c.ok++
	} else {
		c.failed++
	}
}

func TestInitializer_DefaultStatementsGolden(t *testing.T) {
	in, err := NewInitializer(config.Default())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "default_initializer", []byte(strings.Join(in.Statements(), "\n")+"\n"))
}

func TestInitializer_AttachAndUseShape(t *testing.T) {
	in, err := NewInitializer(config.Default())
	require.NoError(t, err)

	stmts := in.Statements()
	require.GreaterOrEqual(t, len(stmts), 2)
	assert.Equal(t,
		"ATTACH IF NOT EXISTS 'warehouse' AS warehouse (TYPE ICEBERG, ENDPOINT 'http://localhost:8181/catalog', SECRET lakekeeper_secret, ACCESS_DELEGATION_MODE 'none')",
		stmts[len(stmts)-2])
	assert.Equal(t, "USE warehouse.demo", stmts[len(stmts)-1])

	for _, s := range stmts {
		assert.NotEqual(t, "USE warehouse", s, "a bare catalog switch must never be issued")
	}
}

func TestInitializer_InitTwice(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExecer{}
	rec := &initCounter{}
	in, err := NewInitializer(config.Default())
	require.NoError(t, err)
	in.Logger = logging.Discard()
	in.Metrics = rec

	require.NoError(t, in.Init(ctx, exec))
	require.NoError(t, in.Init(ctx, exec))

	assert.Len(t, exec.stmts, 2*len(in.Statements()))
	assert.Equal(t, 2, rec.ok)
	for _, s := range exec.stmts {
		if strings.HasPrefix(s, "ATTACH") {
			assert.Contains(t, s, "IF NOT EXISTS")
		}
		if strings.HasPrefix(s, "CREATE") {
			assert.Contains(t, s, "IF NOT EXISTS")
		}
	}
}

func TestInitializer_SurfacesAttachErrors(t *testing.T) {
	ctx := context.Background()
	connErr := errors.New("IO Error: Could not connect to http://localhost:8181/catalog")
	exec := &fakeExecer{failOn: "ATTACH", err: connErr}
	rec := &initCounter{}
	in, err := NewInitializer(config.Default())
	require.NoError(t, err)
	in.Logger = logging.Discard()
	in.Metrics = rec

	err = in.Init(ctx, exec)
	require.Error(t, err)
	assert.ErrorIs(t, err, connErr)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.True(t, strings.HasPrefix(initErr.Statement, "ATTACH IF NOT EXISTS"))
	assert.Equal(t, 1, rec.failed)

	// USE is never reached after a failed attach.
	assert.NotContains(t, exec.stmts, "USE warehouse.demo")
}

func TestInitializer_RequiresSchema(t *testing.T) {
	in := &Initializer{
		Attachment: CatalogAttachment{Name: "warehouse", Warehouse: "warehouse", Type: AttachIceberg},
		Default:    DefaultContext{Catalog: "warehouse"},
		Logger:     logging.Discard(),
	}
	exec := &fakeExecer{}
	assert.ErrorIs(t, in.Init(context.Background(), exec), ErrSchemaRequired)
	assert.Empty(t, exec.stmts)
}

func TestInitializer_CreateSchemaAfterAttach(t *testing.T) {
	cfg := config.Default()
	cfg.Connection.CreateSchema = true
	in, err := NewInitializer(cfg)
	require.NoError(t, err)

	stmts := in.Statements()
	n := len(stmts)
	assert.True(t, strings.HasPrefix(stmts[n-3], "ATTACH"))
	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS warehouse.demo", stmts[n-2])
	assert.Equal(t, "USE warehouse.demo", stmts[n-1])
}

func TestNewDefaultContext(t *testing.T) {
	_, err := NewDefaultContext("warehouse", "")
	assert.ErrorIs(t, err, ErrSchemaRequired)
	_, err = NewDefaultContext("", "demo")
	assert.ErrorIs(t, err, ErrCatalogRequired)

	dc, err := NewDefaultContext("warehouse", "demo")
	require.NoError(t, err)
	assert.Equal(t, "USE warehouse.demo", dc.Statement())
}

func TestCatalogAttachment_Statement(t *testing.T) {
	tests := []struct {
		name string
		att  CatalogAttachment
		want string
	}{
		{
			name: "duckdb file",
			att:  CatalogAttachment{Name: "warehouse", Warehouse: "/tmp/wh.db", Type: AttachDuckDB},
			want: "ATTACH IF NOT EXISTS '/tmp/wh.db' AS warehouse",
		},
		{
			name: "iceberg vended credentials",
			att: CatalogAttachment{
				Name: "lake", Warehouse: "lake", Type: AttachIceberg,
				Endpoint: "http://lakekeeper:8181/catalog", Secret: "s", AccessDelegation: "vended_credentials",
			},
			want: "ATTACH IF NOT EXISTS 'lake' AS lake (TYPE ICEBERG, ENDPOINT 'http://lakekeeper:8181/catalog', SECRET s, ACCESS_DELEGATION_MODE 'vended_credentials')",
		},
		{
			name: "iceberg delegation defaults to none",
			att:  CatalogAttachment{Name: "w", Warehouse: "w", Type: AttachIceberg},
			want: "ATTACH IF NOT EXISTS 'w' AS w (TYPE ICEBERG, ACCESS_DELEGATION_MODE 'none')",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.att.Statement())
		})
	}
}

func TestSecret_Statement(t *testing.T) {
	s := Secret{Name: "minio_secret", Type: "s3", Options: map[string]string{
		"use_ssl": "FALSE",
		"key_id":  "it's",
	}}
	assert.Equal(t, "CREATE SECRET IF NOT EXISTS minio_secret (TYPE S3, KEY_ID 'it''s', USE_SSL false)", s.Statement())
}

func TestNewInitializer_DuckDBAttachSkipsExtensionsAndSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Iceberg.AttachType = "duckdb"
	in, err := NewInitializer(cfg)
	require.NoError(t, err)
	assert.Equal(t, AttachDuckDB, in.Attachment.Type)
	assert.Empty(t, in.Extensions)
	assert.Empty(t, in.Secrets)
	assert.Equal(t, "warehouse", in.Attachment.Name)
	assert.Equal(t, "warehouse.duckdb", in.Attachment.Warehouse)

	cfg.Iceberg.Path = "/data/lake.db"
	in, err = NewInitializer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/data/lake.db", in.Attachment.Warehouse)
}
