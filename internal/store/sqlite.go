package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/wisdom-metrics/internal/model"
	"github.com/sells-group/wisdom-metrics/internal/resilience"
)

// SQLiteStore implements TargetStore using modernc.org/sqlite. Writers are
// serialized by SQLite itself, so the current target is the row with the
// highest id.
type SQLiteStore struct {
	db    *sql.DB
	retry resilience.RetryConfig
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps the pragmas in effect and queues writers in Go.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, retry: resilience.DefaultRetryConfig()}, nil
}

// WithRetry sets the retry policy for busy SetMany transactions.
func (s *SQLiteStore) WithRetry(cfg resilience.RetryConfig) *SQLiteStore {
	s.retry = cfg
	return s
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS metric_targets (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id    INTEGER NOT NULL,
	metric_name  TEXT NOT NULL,
	target_value REAL NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metric_targets_current ON metric_targets(client_id, metric_name, id);
`

const (
	sqliteCurrentTarget = `SELECT ` + targetColumns + ` FROM metric_targets
		WHERE client_id = ? AND metric_name = ?
		ORDER BY id DESC
		LIMIT 1`

	sqliteAllCurrentTargets = `SELECT ` + targetColumns + ` FROM metric_targets t
		WHERE client_id = ?
			AND id = (SELECT MAX(id) FROM metric_targets
				WHERE client_id = t.client_id AND metric_name = t.metric_name)
		ORDER BY metric_name`

	sqliteDeleteCurrent = `DELETE FROM metric_targets WHERE id = (
		SELECT MAX(id) FROM metric_targets WHERE client_id = ? AND metric_name = ?
	)`

	sqliteInsertTarget = `INSERT INTO metric_targets (client_id, metric_name, target_value, created_at) VALUES (?, ?, ?, ?)`
)

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTarget(row rowScanner) (model.TargetRecord, error) {
	var r model.TargetRecord
	err := row.Scan(&r.ID, &r.ClientID, &r.Metric, &r.Value, &r.CreatedAt)
	return r, err
}

func (s *SQLiteStore) queryTargets(ctx context.Context, query string, args ...any) ([]model.TargetRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TargetRecord
	for rows.Next() {
		r, err := scanSQLiteTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Current(ctx context.Context, clientID int64, metric string) (*model.TargetRecord, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}
	r, err := scanSQLiteTarget(s.db.QueryRowContext(ctx, sqliteCurrentTarget, clientID, metric))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: current target %s", metric)
	}
	return &r, nil
}

func (s *SQLiteStore) AllCurrent(ctx context.Context, clientID int64) (map[string]model.TargetRecord, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}
	recs, err := s.queryTargets(ctx, sqliteAllCurrentTargets, clientID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: current targets")
	}
	out := make(map[string]model.TargetRecord, len(recs))
	for _, r := range recs {
		out[r.Metric] = r
	}
	return out, nil
}

func (s *SQLiteStore) Set(ctx context.Context, clientID int64, metric string, value float64) (bool, error) {
	if err := validTargets(clientID, map[string]float64{metric: value}); err != nil {
		return false, err
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsertTarget, clientID, metric, value, time.Now().UTC()); err != nil {
		return false, eris.Wrapf(err, "sqlite: insert target %s", metric)
	}
	return true, nil
}

func (s *SQLiteStore) SetMany(ctx context.Context, clientID int64, targets map[string]float64) (int, error) {
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

func (s *SQLiteStore) setManyTx(ctx context.Context, clientID int64, targets map[string]float64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin set targets")
	}
	defer tx.Rollback() //nolint:errcheck

	current := make(map[string]float64, len(targets))
	for _, m := range sortedMetrics(targets) {
		var v float64
		err := tx.QueryRowContext(ctx,
			`SELECT target_value FROM metric_targets WHERE client_id = ? AND metric_name = ? ORDER BY id DESC LIMIT 1`,
			clientID, m,
		).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: read current target %s", m)
		}
		current[m] = v
	}

	changed := changedTargets(targets, current)
	if len(changed) == 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, sqliteInsertTarget)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert target")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, m := range changed {
		if _, err := stmt.ExecContext(ctx, clientID, m, targets[m], now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert target %s", m)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit targets")
	}

	zap.L().Info("sqlite: targets appended",
		zap.Int64("client_id", clientID),
		zap.Int("rows", len(changed)),
		zap.Strings("metrics", changed),
	)
	return len(changed), nil
}

func (s *SQLiteStore) DeleteCurrent(ctx context.Context, clientID int64, metric string) (bool, error) {
	if err := validClient(clientID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, sqliteDeleteCurrent, clientID, metric)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete current target %s", metric)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context, clientID int64, metric string) (int64, error) {
	if err := validClient(clientID); err != nil {
		return 0, err
	}
	query, args := `DELETE FROM metric_targets WHERE client_id = ?`, []any{clientID}
	if metric != "" {
		query, args = `DELETE FROM metric_targets WHERE client_id = ? AND metric_name = ?`, []any{clientID, metric}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete targets")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) History(ctx context.Context, clientID int64, metric string) ([]model.TargetRecord, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}
	query := `SELECT ` + targetColumns + ` FROM metric_targets WHERE client_id = ?`
	args := []any{clientID}
	if metric != "" {
		query += ` AND metric_name = ?`
		args = append(args, metric)
	}
	query += ` ORDER BY id DESC`

	recs, err := s.queryTargets(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: target history")
	}
	return recs, nil
}
