package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quayside-data/lakehouse/internal/engine"
	"github.com/quayside-data/lakehouse/internal/logging"
	"github.com/quayside-data/lakehouse/internal/model"
	"github.com/quayside-data/lakehouse/internal/state"
)

// Status is the outcome of one model within a run.
type Status string

const (
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
	// StatusSkipped marks models not attempted after an earlier failure.
	StatusSkipped Status = "skipped"
)

// Result is one model's outcome.
type Result struct {
	Model    string
	Kind     model.Kind
	Outcome  engine.Outcome
	Status   Status
	Duration time.Duration
	Err      error
}

// Report summarizes a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

// Applied returns how many models were applied.
func (r *Report) Applied() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusApplied {
			n++
		}
	}
	return n
}

// Err returns the first model failure, if any.
func (r *Report) Err() error {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return fmt.Errorf("%s: %w", res.Model, res.Err)
		}
	}
	return nil
}

// Recorder persists run history. *state.Store satisfies it.
type Recorder interface {
	BeginRun(ctx context.Context, runID, gateway string, started time.Time) error
	RecordModel(ctx context.Context, m state.ModelRun) error
	FinishRun(ctx context.Context, runID string, finished time.Time, models int, runErr error) error
}

// MetricsRecorder receives per-model and per-run observations.
// *metrics.PipelineMetrics satisfies it.
type MetricsRecorder interface {
	RecordModel(kind string, durationSeconds float64, success bool)
	RecordRun(finishedUnix float64, success bool)
}

// Runner applies models through an adapter.
type Runner struct {
	adapter  engine.Adapter
	gateway  string
	seeds    SeedSources
	recorder Recorder
	metrics  MetricsRecorder
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithGateway names the gateway recorded with each run.
func WithGateway(name string) Option {
	return func(r *Runner) { r.gateway = name }
}

// WithSeeds sets where SEED models read from.
func WithSeeds(s SeedSources) Option {
	return func(r *Runner) { r.seeds = s }
}

// WithRecorder records run history.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner returns a Runner bound to adapter.
func NewRunner(adapter engine.Adapter, opts ...Option) *Runner {
	r := &Runner{
		adapter: adapter,
		gateway: "local",
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = logging.Global()
	}
	r.logger = r.logger.With(map[string]any{"component": "pipeline"})
	return r
}

// Plan returns the steps Run would apply, with the statements each
// translates to on this runner's adapter.
func (r *Runner) Plan(models []model.Model) ([]Step, []engine.Translation, error) {
	steps, err := Plan(models, r.seeds)
	if err != nil {
		return nil, nil, err
	}
	trs := make([]engine.Translation, len(steps))
	for i, s := range steps {
		trs[i] = r.adapter.Translate(s.Op)
	}
	return steps, trs, nil
}

// Run applies models in dependency order. It stops at the first failure
// and marks the remaining models skipped. The returned error is the
// planning error or the first model failure.
func (r *Runner) Run(ctx context.Context, models []model.Model) (*Report, error) {
	steps, err := Plan(models, r.seeds)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString(), StartedAt: r.now()}
	logger := r.logger.WithRunID(report.RunID)
	ctx = logging.WithRunIDCtx(ctx, report.RunID)

	if r.recorder != nil {
		if err := r.recorder.BeginRun(ctx, report.RunID, r.gateway, report.StartedAt); err != nil {
			return nil, err
		}
	}
	logger.Infof("run started", map[string]any{"models": len(steps), "gateway": r.gateway})

	var runErr error
	for _, step := range steps {
		res := Result{Model: step.Model.Name, Kind: step.Model.Kind}
		if runErr != nil {
			res.Status = StatusSkipped
			report.Results = append(report.Results, res)
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			res.Status = StatusSkipped
			report.Results = append(report.Results, res)
			continue
		}

		started := r.now()
		res.Outcome = r.adapter.Translate(step.Op).Outcome
		err := r.apply(ctx, step)
		res.Duration = r.now().Sub(started)
		if err != nil {
			res.Status, res.Err = StatusFailed, err
			runErr = fmt.Errorf("%s: %w", step.Model.Name, err)
			logger.Errorf("model failed", map[string]any{
				"model": step.Model.Name, "kind": string(step.Model.Kind), "error": err.Error(),
			})
		} else {
			res.Status = StatusApplied
			logger.Infof("model applied", map[string]any{
				"model":      step.Model.Name,
				"kind":       string(step.Model.Kind),
				"outcome":    res.Outcome.String(),
				"durationMs": res.Duration.Milliseconds(),
			})
		}
		report.Results = append(report.Results, res)

		if r.metrics != nil {
			r.metrics.RecordModel(string(step.Model.Kind), res.Duration.Seconds(), err == nil)
		}
		r.recordModel(ctx, logger, report.RunID, started, res)
	}

	report.FinishedAt = r.now()
	if r.metrics != nil {
		r.metrics.RecordRun(float64(report.FinishedAt.Unix()), runErr == nil)
	}
	if r.recorder != nil {
		// The run's own context may be cancelled; history is still written.
		if err := r.recorder.FinishRun(context.WithoutCancel(ctx), report.RunID, report.FinishedAt, report.Applied(), runErr); err != nil {
			logger.Warnf("failed to record run", map[string]any{"error": err.Error()})
		}
	}

	fields := map[string]any{
		"applied":    report.Applied(),
		"durationMs": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
		logger.Errorf("run failed", fields)
	} else {
		logger.Infof("run finished", fields)
	}
	return report, runErr
}

func (r *Runner) apply(ctx context.Context, step Step) error {
	op := step.Op
	switch op.Kind {
	case engine.OpCreateView:
		return r.adapter.CreateView(ctx, op.Name, op.Query, engine.WithReplace(op.Replace))
	case engine.OpReplaceQuery:
		return r.adapter.ReplaceQuery(ctx, op.Name, op.Query)
	}
	return errors.New("pipeline: unsupported operation " + op.Kind.String())
}

func (r *Runner) recordModel(ctx context.Context, logger *logging.Logger, runID string, started time.Time, res Result) {
	if r.recorder == nil {
		return
	}
	mr := state.ModelRun{
		RunID:     runID,
		Model:     res.Model,
		Kind:      string(res.Kind),
		StartedAt: started,
		Duration:  res.Duration,
	}
	if res.Err != nil {
		mr.Error = res.Err.Error()
	}
	if err := r.recorder.RecordModel(context.WithoutCancel(ctx), mr); err != nil {
		logger.Warnf("failed to record model", map[string]any{"model": res.Model, "error": err.Error()})
	}
}
