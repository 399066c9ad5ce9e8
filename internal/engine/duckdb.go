package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/quayside-data/lakehouse/internal/logging"
)

// DuckDB is the generic adapter for a DuckDB session. Every operation passes
// through as native DDL; the only capability it consults is
// SupportsReplaceTable when replacing a table from a query.
type DuckDB struct {
	backend Backend
	caps    Capabilities
	logger  *logging.Logger
	metrics MetricsRecorder
}

// NewDuckDB creates a DuckDB adapter over backend.
func NewDuckDB(backend Backend, opts ...Option) *DuckDB {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	caps := DuckDBCapabilities
	if o.caps != nil {
		caps = *o.caps
	}
	logger := o.logger
	if logger == nil {
		logger = logging.Global()
	}
	return &DuckDB{
		backend: backend,
		caps:    caps,
		logger:  logger.With(map[string]any{"component": "engine"}),
		metrics: o.metrics,
	}
}

// Backend returns the backend this adapter runs statements on.
func (d *DuckDB) Backend() Backend {
	return d.backend
}

// Capabilities returns the adapter's capability flags.
func (d *DuckDB) Capabilities() Capabilities {
	return d.caps
}

// Translate renders op as native DuckDB statements.
func (d *DuckDB) Translate(op Op) Translation {
	name := op.Name.String()
	switch op.Kind {
	case OpCreateView:
		if op.Replace {
			return passThrough("CREATE OR REPLACE VIEW " + name + " AS " + cleanQuery(op.Query))
		}
		return passThrough("CREATE VIEW " + name + " AS " + cleanQuery(op.Query))

	case OpDropView:
		var b strings.Builder
		b.WriteString("DROP VIEW ")
		if op.IfExists {
			b.WriteString("IF EXISTS ")
		}
		b.WriteString(name)
		if op.Cascade {
			b.WriteString(" CASCADE")
		}
		return passThrough(b.String())

	case OpDropTable:
		return passThrough(dropTableSQL(op.Name, op.IfExists))

	case OpReplaceQuery:
		if d.caps.SupportsReplaceTable {
			return passThrough("CREATE OR REPLACE TABLE " + name + " AS " + cleanQuery(op.Query))
		}
		return rewrite(
			dropTableSQL(op.Name, true),
			createTableAsSQL(op.Name, op.Query),
		)

	case OpSetCatalog:
		return passThrough("USE " + QuoteIdent(op.Catalog))
	}
	return noOp()
}

func dropTableSQL(name TableName, ifExists bool) string {
	if ifExists {
		return "DROP TABLE IF EXISTS " + name.String()
	}
	return "DROP TABLE " + name.String()
}

func createTableAsSQL(name TableName, query string) string {
	return "CREATE TABLE " + name.String() + " AS " + cleanQuery(query)
}

// CreateView creates or replaces a view over query.
func (d *DuckDB) CreateView(ctx context.Context, name TableName, query string, opts ...ViewOption) error {
	return d.run(ctx, createViewOp(name, query, opts), d)
}

// DropView drops a view.
func (d *DuckDB) DropView(ctx context.Context, name TableName, opts ...DropViewOption) error {
	return d.run(ctx, dropViewOp(name, opts), d)
}

// DropTable drops a table. With exists false a missing table is an error.
func (d *DuckDB) DropTable(ctx context.Context, name TableName, exists bool) error {
	return d.run(ctx, Op{Kind: OpDropTable, Name: name, IfExists: exists}, d)
}

// ReplaceQuery replaces the table at name with the result of query.
func (d *DuckDB) ReplaceQuery(ctx context.Context, name TableName, query string) error {
	return d.run(ctx, Op{Kind: OpReplaceQuery, Name: name, Query: query}, d)
}

// SetCurrentCatalog switches the session's default catalog.
func (d *DuckDB) SetCurrentCatalog(ctx context.Context, catalog string) error {
	return d.run(ctx, Op{Kind: OpSetCatalog, Catalog: catalog}, d)
}

// Execute runs stmt without translation.
func (d *DuckDB) Execute(ctx context.Context, stmt string) error {
	return d.exec(ctx, OpExecute, stmt)
}

// Query runs stmt and returns its rows.
func (d *DuckDB) Query(ctx context.Context, stmt string) (*sql.Rows, error) {
	return d.backend.QueryContext(ctx, stmt)
}

// TableExists reports whether name resolves to a base table.
func (d *DuckDB) TableExists(ctx context.Context, name TableName) (bool, error) {
	return d.objectExists(ctx, name, "BASE TABLE")
}

// ViewExists reports whether name resolves to a view.
func (d *DuckDB) ViewExists(ctx context.Context, name TableName) (bool, error) {
	return d.objectExists(ctx, name, "VIEW")
}

func (d *DuckDB) objectExists(ctx context.Context, name TableName, tableType string) (bool, error) {
	var (
		where []string
		args  []any
	)
	if name.Catalog != "" {
		where = append(where, "table_catalog = ?")
		args = append(args, name.Catalog)
	} else {
		where = append(where, "table_catalog = current_database()")
	}
	if name.Schema != "" {
		where = append(where, "table_schema = ?")
		args = append(args, name.Schema)
	} else {
		where = append(where, "table_schema = current_schema()")
	}
	where = append(where, "table_name = ?", "table_type = ?")
	args = append(args, name.Name, tableType)

	q := "SELECT count(*) FROM information_schema.tables WHERE " + strings.Join(where, " AND ")
	rows, err := d.backend.QueryContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("engine: lookup %s: %w", name, err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, fmt.Errorf("engine: lookup %s: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("engine: lookup %s: %w", name, err)
	}
	return n > 0, nil
}

// run translates op with tr, validates it unless the translation discards
// it, and applies the translation.
func (d *DuckDB) run(ctx context.Context, op Op, tr Translator) error {
	t := tr.Translate(op)
	if t.Outcome != NoOp {
		if err := validate(op); err != nil {
			return err
		}
	}
	if d.metrics != nil {
		d.metrics.RecordTranslation(op.Kind.String(), t.Outcome.String())
	}

	log := logging.FromCtx(ctx, d.logger)
	if log.Enabled(logging.LevelDebug) {
		log.Debugf("operation translated", map[string]any{
			"operation":  op.Kind.String(),
			"outcome":    t.Outcome.String(),
			"name":       op.Name.String(),
			"statements": len(t.Statements),
		})
	}

	for _, stmt := range t.Statements {
		if err := d.exec(ctx, op.Kind, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (d *DuckDB) exec(ctx context.Context, kind OpKind, stmt string) error {
	start := time.Now()
	_, err := d.backend.ExecContext(ctx, stmt)
	if d.metrics != nil {
		d.metrics.RecordStatement(time.Since(start).Seconds(), err == nil)
	}
	if err != nil {
		return &StatementError{Op: kind, Statement: stmt, Err: err}
	}
	logging.FromCtx(ctx, d.logger).Debugf("statement executed", map[string]any{
		"statement": stmt,
		"elapsed":   time.Since(start).String(),
	})
	return nil
}

var _ Adapter = (*DuckDB)(nil)
