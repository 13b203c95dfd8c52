// Package wisdom is the metric engine: it computes catalog metrics and
// charts for a client, relates them to the client's targets, and collapses
// internal outcomes to nullable values at its boundary.
package wisdom

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/wisdom-metrics/internal/binder"
	"github.com/sells-group/wisdom-metrics/internal/compare"
	"github.com/sells-group/wisdom-metrics/internal/executor"
	"github.com/sells-group/wisdom-metrics/internal/formula"
	"github.com/sells-group/wisdom-metrics/internal/model"
	"github.com/sells-group/wisdom-metrics/internal/numeric"
	"github.com/sells-group/wisdom-metrics/internal/store"
)

// ErrInvalidClient is returned for a non-positive client id.
var ErrInvalidClient = executor.ErrInvalidClient

// Options bounds the per-metric fan-out path.
type Options struct {
	FanoutConcurrency int
	FanoutQPS         float64
}

// DefaultOptions returns the fan-out limits used when none are configured.
func DefaultOptions() Options {
	return Options{FanoutConcurrency: 4, FanoutQPS: 50}
}

// Engine computes metrics from the fact store and reads targets from a
// TargetStore. It holds no per-client state.
type Engine struct {
	exec    *executor.Executor
	targets *Targets
	opts    Options
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates an Engine.
func New(exec *executor.Executor, ts store.TargetStore, opts Options) *Engine {
	if opts.FanoutConcurrency < 1 {
		opts.FanoutConcurrency = 1
	}
	limit := rate.Inf
	if opts.FanoutQPS > 0 {
		limit = rate.Limit(opts.FanoutQPS)
	}
	burst := opts.FanoutConcurrency
	return &Engine{
		exec:    exec,
		targets: &Targets{store: ts},
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

// Targets returns the target facade.
func (e *Engine) Targets() *Targets {
	return e.targets
}

// collapse turns an outcome into the boundary value, logging failures that
// the executor has not already reported.
func collapse(key string, clientID int64, o model.Outcome) *float64 {
	if o.Kind == model.KindError && o.ErrorKind == model.ErrCoercion {
		zap.L().Warn("wisdom: metric coercion failed",
			zap.String("metric", key),
			zap.Int64("client_id", clientID),
			zap.Error(o.Err),
		)
	}
	return o.Ptr()
}

// Outcome computes one metric and keeps the reason when there is no value.
func (e *Engine) Outcome(ctx context.Context, key string, clientID int64) model.Outcome {
	q, err := formula.MetricQuery(key)
	if err != nil {
		zap.L().Warn("wisdom: unknown metric", zap.String("metric", key))
		return model.Failed(model.ErrInvalidInput, err)
	}
	row, err := e.exec.Row(ctx, q.Statement, clientID)
	if err != nil {
		return executor.Outcome(err)
	}
	return q.Metrics[0].Evaluate(formula.Row(row))
}

// Compute returns one metric for a client, or nil when it has no value.
func (e *Engine) Compute(ctx context.Context, key string, clientID int64) *float64 {
	return collapse(key, clientID, e.Outcome(ctx, key, clientID))
}

// batch runs the single-statement evaluation of every metric. The returned
// name is empty when the client is not in core.clients.
func (e *Engine) batch(ctx context.Context, clientID int64) (map[string]model.Outcome, string, error) {
	q := formula.BatchQuery()
	rec, err := e.exec.Row(ctx, q.Statement, clientID)
	if err != nil {
		return nil, "", err
	}
	row := formula.Row(rec)
	return q.Evaluate(row), formula.ClientName(row), nil
}

// failAll assigns the same failure to every metric.
func failAll(err error) map[string]model.Outcome {
	o := executor.Outcome(err)
	out := make(map[string]model.Outcome, len(formula.All()))
	for _, m := range formula.All() {
		out[m.Key] = o
	}
	return out
}

// group nests outcomes by category, collapsing each one.
func group(outs map[string]model.Outcome, clientID int64) model.Grouped {
	g := model.Grouped{}
	for _, m := range formula.All() {
		g.Set(m.Category, m.Key, collapse(m.Key, clientID, outs[m.Key]))
	}
	return g
}

// ComputeAllOutcomes evaluates every metric in one round trip.
func (e *Engine) ComputeAllOutcomes(ctx context.Context, clientID int64) map[string]model.Outcome {
	outs, _, err := e.batch(ctx, clientID)
	if err != nil {
		return failAll(err)
	}
	return outs
}

// ComputeAll evaluates every metric in one round trip, nested by category.
// The result has the same shape and values as calling Compute per metric.
func (e *Engine) ComputeAll(ctx context.Context, clientID int64) model.Grouped {
	return group(e.ComputeAllOutcomes(ctx, clientID), clientID)
}

// ComputeAllEach evaluates every metric with its own statement, running at
// most FanoutConcurrency statements at once and FanoutQPS per second.
func (e *Engine) ComputeAllEach(ctx context.Context, clientID int64) model.Grouped {
	metrics := formula.All()
	results := make([]model.Outcome, len(metrics))

	var g errgroup.Group
	g.SetLimit(e.opts.FanoutConcurrency)
	for i, m := range metrics {
		g.Go(func() error {
			if err := e.limiter.Wait(ctx); err != nil {
				results[i] = model.Failed(model.ErrStore, eris.Wrap(err, "wisdom: fan-out throttled"))
				return nil
			}
			results[i] = e.Outcome(ctx, m.Key, clientID)
			return nil
		})
	}
	_ = g.Wait()

	outs := make(map[string]model.Outcome, len(metrics))
	for i, m := range metrics {
		outs[m.Key] = results[i]
	}
	return group(outs, clientID)
}

// ComputeChart returns a chart for a client. Unknown charts, invalid
// clients and failures yield an empty slice.
func (e *Engine) ComputeChart(ctx context.Context, key string, clientID int64) []model.ChartPoint {
	c, err := formula.LookupChart(key)
	if err != nil {
		zap.L().Warn("wisdom: unknown chart", zap.String("chart", key))
		return []model.ChartPoint{}
	}
	if !c.Derived() {
		return formula.Points(e.exec.Records(ctx, *c.Stmt, clientID))
	}

	outs, _, err := e.batch(ctx, clientID)
	if err != nil {
		return []model.ChartPoint{}
	}
	return c.Project(group(outs, clientID).Flatten())
}

var rosterStmt = binder.MustCompile("clients",
	`SELECT client_id, client_name AS name FROM core.clients ORDER BY client_id`, 0)

func recordID(rec model.Record) (int64, error) {
	v, ok, err := numeric.Float(rec[formula.ClientIDColumn])
	if err != nil || !ok {
		return 0, eris.Errorf("wisdom: bad client id %v", rec[formula.ClientIDColumn])
	}
	return int64(v), nil
}

// Clients returns the client roster.
func (e *Engine) Clients(ctx context.Context) ([]model.Client, error) {
	recs, err := e.exec.Query(ctx, rosterStmt)
	if err != nil {
		return nil, err
	}
	out := make([]model.Client, 0, len(recs))
	for _, rec := range recs {
		id, err := recordID(rec)
		if err != nil {
			return nil, err
		}
		name, _ := rec["name"].(string)
		out = append(out, model.Client{ID: id, Name: name})
	}
	return out, nil
}

// Summaries computes the summary metrics for every client in one statement.
// Clients without facts are included.
func (e *Engine) Summaries(ctx context.Context) ([]model.ClientSummary, error) {
	q := formula.SummaryQuery()
	recs, err := e.exec.Query(ctx, q.Statement)
	if err != nil {
		return nil, err
	}

	out := make([]model.ClientSummary, 0, len(recs))
	for _, rec := range recs {
		id, err := recordID(rec)
		if err != nil {
			return nil, err
		}
		row := formula.Row(rec)
		metrics := make(map[string]*float64, len(q.Metrics))
		for key, o := range q.Evaluate(row) {
			metrics[key] = collapse(key, id, o)
		}
		out = append(out, model.ClientSummary{ClientID: id, Name: formula.ClientName(row), Metrics: metrics})
	}
	zap.L().Debug("wisdom: summaries", zap.Int("clients", len(out)))
	return out, nil
}

// view merges a value with its target.
func view(key string, value *float64, target *float64) model.MetricView {
	md, _ := formula.Metadata(key)
	return model.MetricView{
		Key:        key,
		Metadata:   md,
		Value:      value,
		Formatted:  compare.FormatValue(md.Category, value),
		Target:     target,
		Comparison: compare.Compare(value, target),
	}
}

// WithTarget computes one metric and compares it to the client's current
// target.
func (e *Engine) WithTarget(ctx context.Context, key string, clientID int64) (model.MetricView, error) {
	if _, err := formula.Lookup(key); err != nil {
		return model.MetricView{}, err
	}
	if clientID <= 0 {
		return model.MetricView{}, eris.Wrapf(ErrInvalidClient, "got %d", clientID)
	}
	value := e.Compute(ctx, key, clientID)
	return view(key, value, e.targets.Get(ctx, clientID, key)), nil
}

// Views computes every metric in one round trip and compares each to the
// client's current targets, in catalog order.
func (e *Engine) Views(ctx context.Context, clientID int64) ([]model.MetricView, error) {
	if clientID <= 0 {
		return nil, eris.Wrapf(ErrInvalidClient, "got %d", clientID)
	}
	values := e.ComputeAll(ctx, clientID).Flatten()
	targets := e.targets.GetAll(ctx, clientID)

	out := make([]model.MetricView, 0, len(values))
	for _, m := range formula.All() {
		out = append(out, view(m.Key, values[m.Key], targetPtr(targets, m.Key)))
	}
	return out, nil
}

func targetPtr(targets map[string]float64, key string) *float64 {
	if v, ok := targets[key]; ok {
		return &v
	}
	return nil
}

// Snapshot computes everything a dashboard shows for a client: the batch
// metrics, current targets and comparisons, and every chart.
func (e *Engine) Snapshot(ctx context.Context, clientID int64) (model.Snapshot, error) {
	if clientID <= 0 {
		return model.Snapshot{}, eris.Wrapf(ErrInvalidClient, "got %d", clientID)
	}

	snap := model.Snapshot{
		ID:          uuid.New(),
		ClientID:    clientID,
		ComputedAt:  e.now().UTC(),
		Comparisons: make(map[string]model.Comparison),
		Charts:      make(map[string][]model.ChartPoint),
	}

	outs, name, err := e.batch(ctx, clientID)
	if err != nil {
		outs = failAll(err)
	}
	snap.ClientName = name
	snap.Metrics = group(outs, clientID)
	values := snap.Metrics.Flatten()

	snap.Targets = e.targets.GetAll(ctx, clientID)
	for _, m := range formula.All() {
		snap.Comparisons[m.Key] = compare.Compare(values[m.Key], targetPtr(snap.Targets, m.Key))
	}

	for _, key := range formula.ChartKeys() {
		c, _ := formula.LookupChart(key)
		switch {
		case !c.Derived():
			snap.Charts[key] = formula.Points(e.exec.Records(ctx, *c.Stmt, clientID))
		case err != nil:
			snap.Charts[key] = []model.ChartPoint{}
		default:
			snap.Charts[key] = c.Project(values)
		}
	}

	zap.L().Info("wisdom: snapshot computed",
		zap.String("snapshot_id", snap.ID.String()),
		zap.Int64("client_id", clientID),
		zap.Int("targets", len(snap.Targets)),
	)
	return snap, nil
}
