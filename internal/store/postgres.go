package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wisdom-metrics/internal/db"
	"github.com/sells-group/wisdom-metrics/internal/model"
	"github.com/sells-group/wisdom-metrics/internal/resilience"
)

// PostgresStore implements TargetStore on core.metric_targets.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	retry   resilience.RetryConfig
}

// NewPostgres opens a dedicated pool for the target store.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open pool")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, retry: resilience.DefaultRetryConfig()}, nil
}

// NewPostgresFromPool shares an existing pool. Close leaves the pool open.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, retry: resilience.DefaultRetryConfig()}
}

// WithRetry sets the retry policy for conflicting SetMany transactions.
func (s *PostgresStore) WithRetry(cfg resilience.RetryConfig) *PostgresStore {
	s.retry = cfg
	return s
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS core;

CREATE TABLE IF NOT EXISTS core.metric_targets (
	id           BIGSERIAL PRIMARY KEY,
	client_id    BIGINT NOT NULL,
	metric_name  TEXT NOT NULL,
	target_value NUMERIC NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_metric_targets_current
	ON core.metric_targets (client_id, metric_name, created_at DESC, id DESC);
`

const targetColumns = `id, client_id, metric_name, target_value, created_at`

// Current is the row with the latest created_at; id breaks ties in
// insertion order.
const (
	pgCurrentTarget = `SELECT ` + targetColumns + ` FROM core.metric_targets
		WHERE client_id = $1 AND metric_name = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	pgAllCurrentTargets = `SELECT DISTINCT ON (metric_name) ` + targetColumns + ` FROM core.metric_targets
		WHERE client_id = $1
		ORDER BY metric_name, created_at DESC, id DESC`

	pgCurrentValues = `SELECT DISTINCT ON (metric_name) metric_name, target_value FROM core.metric_targets
		WHERE client_id = $1 AND metric_name = ANY($2)
		ORDER BY metric_name, created_at DESC, id DESC`

	pgLockTargets = `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || m, 0))
		FROM unnest($2::text[]) AS m
		ORDER BY m`

	pgDeleteCurrent = `DELETE FROM core.metric_targets WHERE id = (
		SELECT id FROM core.metric_targets
		WHERE client_id = $1 AND metric_name = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	)`

	pgInsertTarget = `INSERT INTO core.metric_targets (client_id, metric_name, target_value) VALUES ($1, $2, $3)`

	pgDeleteClient = `DELETE FROM core.metric_targets WHERE client_id = $1`
	pgDeleteMetric = `DELETE FROM core.metric_targets WHERE client_id = $1 AND metric_name = $2`

	pgHistoryClient = `SELECT ` + targetColumns + ` FROM core.metric_targets
		WHERE client_id = $1
		ORDER BY created_at DESC, id DESC`
	pgHistoryMetric = `SELECT ` + targetColumns + ` FROM core.metric_targets
		WHERE client_id = $1 AND metric_name = $2
		ORDER BY created_at DESC, id DESC`
)

var targetCopyColumns = []string{"client_id", "metric_name", "target_value"}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func scanTarget(row pgx.Row) (model.TargetRecord, error) {
	var r model.TargetRecord
	err := row.Scan(&r.ID, &r.ClientID, &r.Metric, &r.Value, &r.CreatedAt)
	return r, err
}

func collectTargets(rows pgx.Rows) ([]model.TargetRecord, error) {
	defer rows.Close()
	var out []model.TargetRecord
	for rows.Next() {
		r, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Current(ctx context.Context, clientID int64, metric string) (*model.TargetRecord, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}
	r, err := scanTarget(s.pool.QueryRow(ctx, pgCurrentTarget, clientID, metric))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: current target %s", metric)
	}
	return &r, nil
}

func (s *PostgresStore) AllCurrent(ctx context.Context, clientID int64) (map[string]model.TargetRecord, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, pgAllCurrentTargets, clientID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: current targets")
	}
	recs, err := collectTargets(rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan current targets")
	}
	out := make(map[string]model.TargetRecord, len(recs))
	for _, r := range recs {
		out[r.Metric] = r
	}
	return out, nil
}

func (s *PostgresStore) Set(ctx context.Context, clientID int64, metric string, value float64) (bool, error) {
	if err := validTargets(clientID, map[string]float64{metric: value}); err != nil {
		return false, err
	}
	if _, err := s.pool.Exec(ctx, pgInsertTarget, clientID, metric, value); err != nil {
		return false, eris.Wrapf(err, "postgres: insert target %s", metric)
	}
	zap.L().Debug("postgres: target appended", zap.Int64("client_id", clientID), zap.String("metric", metric))
	return true, nil
}

// SetMany locks the affected (client, metric) pairs, reads their current
// values and appends the changed ones in one transaction. Conflicting
// transactions are retried.
func (s *PostgresStore) SetMany(ctx context.Context, clientID int64, targets map[string]float64) (int, error) {
	if err := validTargets(clientID, targets); err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}

	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("metric_targets", "set_many")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
		return s.setManyTx(ctx, clientID, targets)
	})
}

func (s *PostgresStore) setManyTx(ctx context.Context, clientID int64, targets map[string]float64) (int, error) {
	metrics := sortedMetrics(targets)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin set targets")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, pgLockTargets, clientID, metrics); err != nil {
		return 0, eris.Wrap(err, "postgres: lock targets")
	}

	rows, err := tx.Query(ctx, pgCurrentValues, clientID, metrics)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: read current targets")
	}
	current := make(map[string]float64, len(metrics))
	for rows.Next() {
		var name string
		var v float64
		if err := rows.Scan(&name, &v); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "postgres: scan current target")
		}
		current[name] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "postgres: read current targets")
	}

	changed := changedTargets(targets, current)
	if len(changed) == 0 {
		zap.L().Debug("postgres: targets unchanged", zap.Int64("client_id", clientID), zap.Int("metrics", len(metrics)))
		return 0, nil
	}

	copyRows := make([][]any, 0, len(changed))
	for _, m := range changed {
		copyRows = append(copyRows, []any{clientID, m, targets[m]})
	}
	n, err := db.CopyInto(ctx, tx, "core.metric_targets", targetCopyColumns, copyRows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append targets")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit targets")
	}

	zap.L().Info("postgres: targets appended",
		zap.Int64("client_id", clientID),
		zap.Int64("rows", n),
		zap.Strings("metrics", changed),
	)
	return int(n), nil
}

func (s *PostgresStore) DeleteCurrent(ctx context.Context, clientID int64, metric string) (bool, error) {
	if err := validClient(clientID); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, pgDeleteCurrent, clientID, metric)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete current target %s", metric)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context, clientID int64, metric string) (int64, error) {
	if err := validClient(clientID); err != nil {
		return 0, err
	}
	sql, args := pgDeleteClient, []any{clientID}
	if metric != "" {
		sql, args = pgDeleteMetric, []any{clientID, metric}
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete targets")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) History(ctx context.Context, clientID int64, metric string) ([]model.TargetRecord, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}
	sql, args := pgHistoryClient, []any{clientID}
	if metric != "" {
		sql, args = pgHistoryMetric, []any{clientID, metric}
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: target history")
	}
	recs, err := collectTargets(rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan target history")
	}
	return recs, nil
}
