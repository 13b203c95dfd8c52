package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wisdom-metrics/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := NewPostgresFromPool(mock).WithRetry(resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	})
	return s, mock
}

var targetRowColumns = []string{"id", "client_id", "metric_name", "target_value", "created_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS core.metric_targets`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Current_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, client_id, metric_name, target_value, created_at FROM core.metric_targets`).
		WithArgs(int64(1), "net-worth").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.Current(context.Background(), 1, "net-worth")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Current_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC\s+LIMIT 1`).
		WithArgs(int64(1), "net-worth").
		WillReturnRows(pgxmock.NewRows(targetRowColumns).AddRow(int64(9), int64(1), "net-worth", 750000.0, now))

	rec, err := s.Current(context.Background(), 1, "net-worth")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(9), rec.ID)
	assert.Equal(t, 750000.0, rec.Value)
	assert.Equal(t, now, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AllCurrent(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT DISTINCT ON \(metric_name\)`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(targetRowColumns).
			AddRow(int64(3), int64(1), "margin", 100.0, now).
			AddRow(int64(4), int64(1), "net-worth", 500.0, now))

	all, err := s.AllCurrent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 500.0, all["net-worth"].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetMany_AppendsChanged(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(1), []string{"margin", "net-worth"}).
		WillReturnResult(pgxmock.NewResult("SELECT", 2))
	mock.ExpectQuery(`metric_name = ANY\(\$2\)`).
		WithArgs(int64(1), []string{"margin", "net-worth"}).
		WillReturnRows(pgxmock.NewRows([]string{"metric_name", "target_value"}).AddRow("margin", 25.0))
	mock.ExpectCopyFrom(pgx.Identifier{"core", "metric_targets"}, []string{"client_id", "metric_name", "target_value"}).
		WillReturnResult(1)
	mock.ExpectCommit()

	n, err := s.SetMany(context.Background(), 1, map[string]float64{"net-worth": 1000, "margin": 25})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetMany_Unchanged(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(1), []string{"net-worth"}).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`metric_name = ANY`).
		WithArgs(int64(1), []string{"net-worth"}).
		WillReturnRows(pgxmock.NewRows([]string{"metric_name", "target_value"}).AddRow("net-worth", 1000.0))
	mock.ExpectRollback()

	n, err := s.SetMany(context.Background(), 1, map[string]float64{"net-worth": 1000})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Set_AlwaysAppends(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	for range 2 {
		mock.ExpectExec(`INSERT INTO core.metric_targets \(client_id, metric_name, target_value\)`).
			WithArgs(int64(1), "net-worth", 1000.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	for range 2 {
		changed, err := s.Set(context.Background(), 1, "net-worth", 1000)
		require.NoError(t, err)
		assert.True(t, changed)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Set_Errors(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.Set(context.Background(), 0, "net-worth", 1)
	assert.True(t, errors.Is(err, ErrInvalidClient))
	_, err = s.Set(context.Background(), 1, "net-worth", math.NaN())
	assert.True(t, errors.Is(err, ErrInvalidTarget))

	mock.ExpectExec(`INSERT INTO core.metric_targets`).
		WithArgs(int64(1), "net-worth", 5.0).
		WillReturnError(errors.New("connection lost"))
	_, err = s.Set(context.Background(), 1, "net-worth", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert target net-worth")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetMany_RetriesSerializationFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(1), []string{"cash"}).
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(1), []string{"cash"}).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`metric_name = ANY`).
		WithArgs(int64(1), []string{"cash"}).
		WillReturnRows(pgxmock.NewRows([]string{"metric_name", "target_value"}))
	mock.ExpectCopyFrom(pgx.Identifier{"core", "metric_targets"}, []string{"client_id", "metric_name", "target_value"}).
		WillReturnResult(1)
	mock.ExpectCommit()

	n, err := s.SetMany(context.Background(), 1, map[string]float64{"cash": 10})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetMany_CopyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(1), []string{"cash"}).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`metric_name = ANY`).
		WithArgs(int64(1), []string{"cash"}).
		WillReturnRows(pgxmock.NewRows([]string{"metric_name", "target_value"}))
	mock.ExpectCopyFrom(pgx.Identifier{"core", "metric_targets"}, []string{"client_id", "metric_name", "target_value"}).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.SetMany(context.Background(), 1, map[string]float64{"cash": 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append targets")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetMany_InvalidClient(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.SetMany(context.Background(), 0, map[string]float64{"cash": 10})
	assert.True(t, errors.Is(err, ErrInvalidClient))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCurrent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM core.metric_targets WHERE id = \(`).
		WithArgs(int64(1), "cash").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM core.metric_targets WHERE id = \(`).
		WithArgs(int64(1), "cash").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ok, err := s.DeleteCurrent(context.Background(), 1, "cash")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteCurrent(context.Background(), 1, "cash")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM core.metric_targets WHERE client_id = \$1 AND metric_name = \$2`).
		WithArgs(int64(1), "cash").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM core.metric_targets WHERE client_id = \$1$`).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.DeleteAll(context.Background(), 1, "cash")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.DeleteAll(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE client_id = \$1 AND metric_name = \$2\s+ORDER BY created_at DESC, id DESC`).
		WithArgs(int64(1), "cash").
		WillReturnRows(pgxmock.NewRows(targetRowColumns).
			AddRow(int64(2), int64(1), "cash", 20.0, now).
			AddRow(int64(1), int64(1), "cash", 10.0, now.Add(-time.Hour)))

	hist, err := s.History(context.Background(), 1, "cash")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 20.0, hist[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM core.metric_targets`).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection lost"))

	_, err := s.History(context.Background(), 1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangedTargets(t *testing.T) {
	targets := map[string]float64{"a": 1.1, "b": 2, "c": 3}
	current := map[string]float64{"a": 1.1, "b": 2.5}

	assert.Equal(t, []string{"b", "c"}, changedTargets(targets, current))
}

func TestSameValue(t *testing.T) {
	x, y := 0.1, 0.2
	sum := x + y
	require.NotEqual(t, 0.3, sum)

	tests := []struct {
		a, b float64
		want bool
	}{
		{sum, 0.3, true},
		{1_000_000, 1_000_000.0000001, true},
		{1, 1.000001, false},
		{-2.5, -2.5, true},
		{0.25, 0.2500004, true},
		{0.25, 0.2500006, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sameValue(tt.a, tt.b), "%v vs %v", tt.a, tt.b)
	}

	assert.Empty(t, changedTargets(map[string]float64{"a": sum}, map[string]float64{"a": 0.3}))
}
