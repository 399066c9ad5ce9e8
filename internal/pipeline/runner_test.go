package pipeline

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-data/lakehouse/internal/engine"
	"github.com/quayside-data/lakehouse/internal/logging"
	"github.com/quayside-data/lakehouse/internal/model"
	"github.com/quayside-data/lakehouse/internal/session"
	"github.com/quayside-data/lakehouse/internal/state"
)

var (
	modelsDir = filepath.Join("..", "..", "transform", "models")
	seedsDir  = filepath.Join("..", "..", "transform", "seeds")
)

func openSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), session.Options{
		Initializer: &session.Initializer{
			Attachment: session.CatalogAttachment{
				Name:      "warehouse",
				Warehouse: filepath.Join(t.TempDir(), "warehouse.db"),
				Type:      session.AttachDuckDB,
			},
			Default:      session.DefaultContext{Catalog: "warehouse", Schema: "demo"},
			CreateSchema: true,
			Logger:       logging.Discard(),
		},
		MaxOpenConns: 2,
		Logger:       logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func loadExample(t *testing.T) []model.Model {
	t.Helper()
	models, err := model.LoadDir(modelsDir)
	require.NoError(t, err)
	return models
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

type fakeMetrics struct {
	mu     sync.Mutex
	models map[string]int
	runs   []bool
}

func (f *fakeMetrics) RecordModel(kind string, _ float64, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.models == nil {
		f.models = map[string]int{}
	}
	if success {
		f.models[kind]++
	}
}

func (f *fakeMetrics) RecordRun(_ float64, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, success)
}

func TestRunExampleProject(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	store, err := state.Open(ctx, ":memory:", logging.Discard())
	require.NoError(t, err)
	defer store.Close()
	m := &fakeMetrics{}

	r := NewRunner(s.Adapter(),
		WithSeeds(SeedSources{Dir: seedsDir}),
		WithRecorder(store),
		WithMetrics(m),
		WithGateway("test"),
		WithLogger(logging.Discard()),
	)
	report, err := r.Run(ctx, loadExample(t))
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 4, report.Applied())
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, 8, count(t, s.DB(), "demo.bronze_orders"))
	assert.Equal(t, 5, count(t, s.DB(), "demo.silver_orders"), "completed, deduplicated")
	assert.Equal(t, 4, count(t, s.DB(), "demo.gold_daily_revenue"))
	assert.Equal(t, 3, count(t, s.DB(), "demo.top_products"))

	isView, err := s.Adapter().ViewExists(ctx, engine.MustParseTableName("demo.top_products"))
	require.NoError(t, err)
	assert.True(t, isView)

	var revenue float64
	require.NoError(t, s.DB().QueryRow(
		"SELECT revenue FROM demo.gold_daily_revenue WHERE order_date = DATE '2024-01-01'").Scan(&revenue))
	assert.InDelta(t, 2*9.99+24.50, revenue, 1e-9)

	runs, err := store.LastRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, state.StatusSuccess, runs[0].Status)
	assert.Equal(t, "test", runs[0].Gateway)
	assert.Equal(t, 4, runs[0].Models)

	modelRuns, err := store.ModelRuns(ctx, report.RunID)
	require.NoError(t, err)
	assert.Len(t, modelRuns, 4)

	assert.Equal(t, map[string]int{"SEED": 1, "FULL": 2, "VIEW": 1}, m.models)
	assert.Equal(t, []bool{true}, m.runs)
}

func TestRunTwiceReplaces(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	r := NewRunner(s.Adapter(), WithSeeds(SeedSources{Dir: seedsDir}), WithLogger(logging.Discard()))

	for i := 0; i < 2; i++ {
		_, err := r.Run(ctx, loadExample(t))
		require.NoError(t, err)
	}
	assert.Equal(t, 5, count(t, s.DB(), "demo.silver_orders"))
}

func TestRunOnIcebergAdapterSnapshotsViews(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE SCHEMA demo")
	require.NoError(t, err)

	r := NewRunner(engine.NewIceberg(db, engine.WithLogger(logging.Discard())),
		WithSeeds(SeedSources{Dir: seedsDir}), WithLogger(logging.Discard()))
	report, err := r.Run(ctx, loadExample(t))
	require.NoError(t, err)

	outcomes := map[string]engine.Outcome{}
	for _, res := range report.Results {
		outcomes[res.Model] = res.Outcome
	}
	assert.Equal(t, engine.Rewrite, outcomes["demo.top_products"])
	assert.Equal(t, engine.Rewrite, outcomes["demo.silver_orders"], "drop-then-create from capabilities")

	var tableType string
	require.NoError(t, db.QueryRow(
		"SELECT table_type FROM information_schema.tables WHERE table_schema = 'demo' AND table_name = 'top_products'").Scan(&tableType))
	assert.Equal(t, "BASE TABLE", tableType)
	assert.Equal(t, 3, count(t, db, "demo.top_products"))
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	store, err := state.Open(ctx, ":memory:", logging.Discard())
	require.NoError(t, err)
	defer store.Close()

	models := []model.Model{
		{Name: "demo.a", Kind: model.KindFull, Query: "SELECT * FROM demo.does_not_exist"},
		{Name: "demo.b", Kind: model.KindView, Query: "SELECT * FROM demo.a", DependsOn: []string{"demo.a"}},
		{Name: "demo.c", Kind: model.KindFull, Query: "SELECT 1 AS x", DependsOn: []string{"demo.a"}},
	}
	r := NewRunner(s.Adapter(), WithRecorder(store), WithLogger(logging.Discard()))
	report, err := r.Run(ctx, models)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "demo.a")

	var stmtErr *engine.StatementError
	assert.ErrorAs(t, err, &stmtErr)

	require.Len(t, report.Results, 3)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, StatusSkipped, report.Results[1].Status)
	assert.Equal(t, StatusSkipped, report.Results[2].Status)
	assert.Equal(t, 0, report.Applied())

	runs, err := store.LastRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "demo.a")
}

func TestRunCancelledContext(t *testing.T) {
	s := openSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(s.Adapter(), WithLogger(logging.Discard()))
	report, err := r.Run(ctx, []model.Model{{Name: "demo.x", Kind: model.KindFull, Query: "SELECT 1"}})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusSkipped, report.Results[0].Status)
}

func TestRunRejectsCycles(t *testing.T) {
	r := NewRunner(engine.NewDuckDB(nil), WithLogger(logging.Discard()))
	_, err := r.Run(context.Background(), []model.Model{
		{Name: "a", Kind: model.KindFull, Query: "SELECT 1", DependsOn: []string{"b"}},
		{Name: "b", Kind: model.KindFull, Query: "SELECT 1", DependsOn: []string{"a"}},
	})
	assert.ErrorIs(t, err, model.ErrCycle)
}

func TestPlanTranslatesPerAdapter(t *testing.T) {
	models := []model.Model{
		{Name: "demo.seeded", Kind: model.KindSeed, Seed: "raw"},
		{Name: "demo.v", Kind: model.KindView, Query: "SELECT * FROM demo.seeded", DependsOn: []string{"demo.seeded"}},
	}
	seeds := SeedSources{URIs: map[string]string{"raw": "s3://examples/seeds/raw.parquet"}}

	_, duck, err := NewRunner(engine.NewDuckDB(nil), WithSeeds(seeds), WithLogger(logging.Discard())).Plan(models)
	require.NoError(t, err)
	require.Len(t, duck, 2)
	assert.Equal(t, []string{
		"CREATE OR REPLACE TABLE demo.seeded AS SELECT * FROM read_parquet('s3://examples/seeds/raw.parquet')",
	}, duck[0].Statements)
	assert.Equal(t, engine.PassThrough, duck[1].Outcome)

	_, ice, err := NewRunner(engine.NewIceberg(nil), WithSeeds(seeds), WithLogger(logging.Discard())).Plan(models)
	require.NoError(t, err)
	assert.Equal(t, engine.Rewrite, ice[1].Outcome)
	assert.Equal(t, []string{
		"DROP TABLE IF EXISTS demo.v",
		"CREATE TABLE demo.v AS SELECT * FROM demo.seeded",
	}, ice[1].Statements)
}

func TestSeedSources(t *testing.T) {
	s := SeedSources{URIs: map[string]string{"a": "s3://b/seeds/a.parquet"}, Dir: "seeds"}

	q, err := s.Query("a")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM read_parquet('s3://b/seeds/a.parquet')", q)

	q, err = s.Query("b")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM read_csv_auto('seeds/b.csv')", q)

	_, err = SeedSources{}.Query("a")
	assert.ErrorIs(t, err, ErrSeedUnavailable)
}
