package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/quayside-data/lakehouse/internal/engine"
	"github.com/quayside-data/lakehouse/internal/logging"
)

// Execer runs a statement on one connection.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InitRecorder receives one observation per initializer run.
type InitRecorder interface {
	RecordInit(durationSeconds float64, success bool)
}

// Initializer brings a fresh connection to the state the calling engine
// assumes: extensions loaded, secrets registered, the catalog attached and
// a catalog.schema default selected. Every statement is guarded, so running
// it any number of times on connections sharing one database is safe.
type Initializer struct {
	Extensions []string
	Secrets    []Secret
	Attachment CatalogAttachment
	Default    DefaultContext
	// CreateSchema issues CREATE SCHEMA IF NOT EXISTS for the default schema
	// after attaching.
	CreateSchema bool

	Logger  *logging.Logger
	Metrics InitRecorder
}

// Statements returns the statements Init issues, in order.
func (in *Initializer) Statements() []string {
	var stmts []string
	for _, ext := range in.Extensions {
		stmts = append(stmts, "INSTALL "+engine.QuoteIdent(ext), "LOAD "+engine.QuoteIdent(ext))
	}
	for _, s := range sortedSecrets(in.Secrets) {
		stmts = append(stmts, s.Statement())
	}
	stmts = append(stmts, in.Attachment.Statement())
	if in.CreateSchema {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+in.Default.SchemaName())
	}
	return append(stmts, in.Default.Statement())
}

// Init runs the statements on execer, stopping at the first failure. Backend
// errors, including unreachable endpoints and rejected credentials, are
// returned unchanged inside an *InitError.
func (in *Initializer) Init(ctx context.Context, execer Execer) error {
	if in.Default.Schema == "" {
		return ErrSchemaRequired
	}

	start := time.Now()
	err := in.run(ctx, execer)
	if in.Metrics != nil {
		in.Metrics.RecordInit(time.Since(start).Seconds(), err == nil)
	}

	log := logging.FromCtx(ctx, in.logger())
	if err != nil {
		log.Errorf("connection initialization failed", map[string]any{
			"catalog": in.Attachment.Name,
			"error":   err.Error(),
		})
		return err
	}
	log.Debugf("connection initialized", map[string]any{
		"catalog": in.Attachment.Name,
		"schema":  in.Default.Schema,
		"elapsed": time.Since(start).String(),
	})
	return nil
}

func (in *Initializer) run(ctx context.Context, execer Execer) error {
	for _, stmt := range in.Statements() {
		if _, err := execer.ExecContext(ctx, stmt); err != nil {
			return &InitError{Statement: stmt, Err: err}
		}
	}
	return nil
}

func (in *Initializer) logger() *logging.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return logging.Global()
}

// InitError wraps the backend error of the statement that failed.
type InitError struct {
	Statement string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("session: init: %s: %v", e.Statement, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// driverExecer adapts the raw driver connection handed to a connector's
// init hook.
type driverExecer struct {
	conn driver.ExecerContext
}

func (d driverExecer) ExecContext(ctx context.Context, query string, _ ...any) (sql.Result, error) {
	res, err := d.conn.ExecContext(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return res, nil
}
