// Package session opens DuckDB sessions whose every pooled connection is
// initialized against an attached catalog, and hands out the engine adapter
// that matches the attachment type.
package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/quayside-data/lakehouse/internal/engine"
	"github.com/quayside-data/lakehouse/internal/logging"
)

// ErrNoInitializer is returned by Open when Options carries no initializer.
var ErrNoInitializer = errors.New("session: initializer is required")

// Options configures Open.
type Options struct {
	// Database is the DuckDB path. Empty or ":memory:" opens an in-memory
	// database.
	Database     string
	Initializer  *Initializer
	MaxOpenConns int

	Logger        *logging.Logger
	EngineOptions []engine.Option
}

// Session is an initialized connection pool plus its adapter.
type Session struct {
	id        string
	db        *sql.DB
	connector *duckdb.Connector
	adapter   engine.Adapter
	init      *Initializer
	logger    *logging.Logger
}

// Open creates the pool and verifies one connection initializes. The
// initializer runs on every connection the pool opens afterwards.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Initializer == nil {
		return nil, ErrNoInitializer
	}
	base := opts.Logger
	if base == nil {
		base = logging.Global()
	}
	id := uuid.NewString()
	logger := base.WithSessionID(id).With(map[string]any{"component": "session"})

	in := *opts.Initializer
	if in.Logger == nil {
		in.Logger = logger
	}

	dsn := opts.Database
	if dsn == ":memory:" {
		dsn = ""
	}
	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		return in.Init(context.Background(), driverExecer{conn: execer})
	})
	if err != nil {
		return nil, fmt.Errorf("session: open duckdb %q: %w", opts.Database, err)
	}

	db := sql.OpenDB(connector)
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		connector.Close()
		return nil, fmt.Errorf("session: initialize connection: %w", err)
	}

	engineOpts := append([]engine.Option{engine.WithLogger(base.WithSessionID(id))}, opts.EngineOptions...)
	var adapter engine.Adapter
	if in.Attachment.Type == AttachIceberg {
		adapter = engine.NewIceberg(db, engineOpts...)
	} else {
		adapter = engine.NewDuckDB(db, engineOpts...)
	}

	logger.Infof("session opened", map[string]any{
		"database": opts.Database,
		"catalog":  in.Attachment.Name,
		"attach":   string(in.Attachment.Type),
		"default":  in.Default.Catalog + "." + in.Default.Schema,
	})

	return &Session{
		id:        id,
		db:        db,
		connector: connector,
		adapter:   adapter,
		init:      &in,
		logger:    logger,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// DB returns the underlying pool.
func (s *Session) DB() *sql.DB {
	return s.db
}

// Adapter returns the engine adapter bound to this session.
func (s *Session) Adapter() engine.Adapter {
	return s.adapter
}

// Initializer returns the initializer every connection runs.
func (s *Session) Initializer() *Initializer {
	return s.init
}

// Close closes the pool and the database.
func (s *Session) Close() error {
	err := s.db.Close()
	if cerr := s.connector.Close(); err == nil {
		err = cerr
	}
	s.logger.Debug("session closed")
	return err
}
