package wisdom

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wisdom-metrics/internal/binder"
	"github.com/sells-group/wisdom-metrics/internal/executor"
	"github.com/sells-group/wisdom-metrics/internal/formula"
	"github.com/sells-group/wisdom-metrics/internal/model"
	"github.com/sells-group/wisdom-metrics/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "targets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestEngine(t *testing.T) (*Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	e := New(executor.New(mock), newTestStore(t), Options{FanoutConcurrency: 4})
	e.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e, mock
}

func exactSQL(st binder.Statement) string {
	return "^" + regexp.QuoteMeta(st.SQL) + "$"
}

func argsFor(st binder.Statement, clientID int64) []any {
	args := make([]any, st.Params)
	for i := range args {
		args[i] = clientID
	}
	return args
}

// rowsFor returns the single roster row q would produce from facts.
func rowsFor(q formula.Query, clientID int64, facts map[string]any) *pgxmock.Rows {
	vals := make([]any, len(q.Columns))
	for i, c := range q.Columns {
		if c == formula.ClientIDColumn {
			vals[i] = clientID
			continue
		}
		vals[i] = facts[c]
	}
	return pgxmock.NewRows(q.Columns).AddRow(vals...)
}

func expectQuery(mock pgxmock.PgxPoolIface, q formula.Query, clientID int64, facts map[string]any) {
	mock.ExpectQuery(exactSQL(q.Statement)).
		WithArgs(argsFor(q.Statement, clientID)...).
		WillReturnRows(rowsFor(q, clientID, facts))
}

// richFacts fills every batch column with a plausible value.
func richFacts() map[string]any {
	facts := map[string]any{}
	for i, c := range formula.BatchQuery().Columns {
		switch c {
		case formula.ClientIDColumn:
		case "cl_name":
			facts[c] = "Jane Doe"
		case "cl_age":
			facts[c] = 52.0
		case "cl_present":
			facts[c] = true
		case "ho_total":
			facts[c] = 250000.0
		case "li_owed":
			facts[c] = 5000.0
		case "li_loans":
			facts[c] = `[{"principal": 120000, "rate": 0.06, "term_years": 30}, {"principal": 2400}]`
		default:
			facts[c] = float64(1000 * (i%7 + 1))
		}
	}
	return facts
}

// emptyFacts is a client on the roster with no fact rows: every joined
// column is null.
func emptyFacts() map[string]any {
	return map[string]any{}
}

func TestBatchMatchesSingle(t *testing.T) {
	fixtures := map[string]map[string]any{
		"rich":  richFacts(),
		"empty": emptyFacts(),
	}

	for name, facts := range fixtures {
		t.Run(name, func(t *testing.T) {
			e, mock := newTestEngine(t)
			const clientID = int64(42)

			expectQuery(mock, formula.BatchQuery(), clientID, facts)
			batch := e.ComputeAll(context.Background(), clientID)

			for _, m := range formula.All() {
				q, err := formula.MetricQuery(m.Key)
				require.NoError(t, err)
				expectQuery(mock, q, clientID, facts)

				single := e.Compute(context.Background(), m.Key, clientID)
				got, ok := batch.Get(m.Category, m.Key)
				require.True(t, ok, "batch missing %s", m.Key)
				if single == nil {
					assert.Nil(t, got, "metric %s", m.Key)
					continue
				}
				require.NotNil(t, got, "metric %s", m.Key)
				assert.Equal(t, *single, *got, "metric %s", m.Key)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestComputeAllEach_MatchesBatch(t *testing.T) {
	e, mock := newTestEngine(t)
	mock.MatchExpectationsInOrder(false)
	const clientID = int64(7)
	facts := richFacts()

	for _, m := range formula.All() {
		q, err := formula.MetricQuery(m.Key)
		require.NoError(t, err)
		expectQuery(mock, q, clientID, facts)
	}
	each := e.ComputeAllEach(context.Background(), clientID)
	require.NoError(t, mock.ExpectationsWereMet())

	expectQuery(mock, formula.BatchQuery(), clientID, facts)
	batch := e.ComputeAll(context.Background(), clientID)

	assert.Equal(t, batch, each)
}

func TestComputeAll_EmptyClientNullVsZero(t *testing.T) {
	e, mock := newTestEngine(t)
	expectQuery(mock, formula.BatchQuery(), 9, emptyFacts())

	flat := e.ComputeAll(context.Background(), 9).Flatten()
	require.Len(t, flat, len(formula.All()))

	for _, key := range []string{"net-worth", "life-insurance", "total-income", "current-year-debt", "margin"} {
		require.NotNil(t, flat[key], key)
		assert.Equal(t, 0.0, *flat[key], key)
	}
	for _, key := range []string{"retirement-ratio", "savings-ratio", "diversification-ratio", "ltd-ratio"} {
		assert.Nil(t, flat[key], key)
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	e, mock := newTestEngine(t)

	assert.Nil(t, e.Compute(context.Background(), "net-worth", 0))
	assert.Nil(t, e.Compute(context.Background(), "net-worth", -3))
	assert.Nil(t, e.Compute(context.Background(), "no-such-metric", 1))

	out := e.Outcome(context.Background(), "no-such-metric", 1)
	assert.Equal(t, model.ErrInvalidInput, out.ErrorKind)
	assert.True(t, errors.Is(out.Err, formula.ErrUnknownMetric))

	out = e.Outcome(context.Background(), "net-worth", 0)
	assert.Equal(t, model.ErrInvalidInput, out.ErrorKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompute_StoreFailure(t *testing.T) {
	e, mock := newTestEngine(t)
	q, err := formula.MetricQuery("net-worth")
	require.NoError(t, err)

	mock.ExpectQuery(exactSQL(q.Statement)).
		WithArgs(argsFor(q.Statement, 3)...).
		WillReturnError(errors.New("connection refused"))

	out := e.Outcome(context.Background(), "net-worth", 3)
	assert.Equal(t, model.ErrStore, out.ErrorKind)
	assert.Nil(t, out.Ptr())
}

func TestComputeAll_StoreFailureKeepsShape(t *testing.T) {
	e, mock := newTestEngine(t)
	q := formula.BatchQuery()
	mock.ExpectQuery(exactSQL(q.Statement)).
		WithArgs(argsFor(q.Statement, 3)...).
		WillReturnError(errors.New("connection refused"))

	g := e.ComputeAll(context.Background(), 3)
	flat := g.Flatten()
	assert.Len(t, flat, len(formula.All()))
	for k, v := range flat {
		assert.Nil(t, v, k)
	}
	assert.Len(t, g, len(model.Categories))
}

func TestComputeChart_SQL(t *testing.T) {
	e, mock := newTestEngine(t)
	c, err := formula.LookupChart(formula.ChartIncome)
	require.NoError(t, err)

	mock.ExpectQuery(exactSQL(*c.Stmt)).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"category", "amount"}).
			AddRow("Business", 0.0).
			AddRow("Earned Income", 120000.0))

	points := e.ComputeChart(context.Background(), formula.ChartIncome, 5)
	require.Len(t, points, 2)
	assert.Equal(t, "Earned Income", points[1].Category)
	assert.Equal(t, 120000.0, *points[1].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComputeChart_Derived(t *testing.T) {
	e, mock := newTestEngine(t)
	facts := richFacts()
	expectQuery(mock, formula.BatchQuery(), 5, facts)
	expectQuery(mock, formula.BatchQuery(), 5, facts)

	points := e.ComputeChart(context.Background(), formula.ChartExpense, 5)
	require.Len(t, points, 5)
	assert.Equal(t, "Giving", points[0].Category)

	flat := e.ComputeAll(context.Background(), 5).Flatten()
	assert.Equal(t, flat["current-year-debt"], points[2].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComputeChart_Failures(t *testing.T) {
	e, mock := newTestEngine(t)

	assert.Empty(t, e.ComputeChart(context.Background(), "pie", 5))
	assert.NotNil(t, e.ComputeChart(context.Background(), "pie", 5))
	assert.Empty(t, e.ComputeChart(context.Background(), formula.ChartIncome, 0))

	q := formula.BatchQuery()
	mock.ExpectQuery(exactSQL(q.Statement)).
		WithArgs(argsFor(q.Statement, 5)...).
		WillReturnError(errors.New("boom"))
	assert.Empty(t, e.ComputeChart(context.Background(), formula.ChartWisdomIndex, 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClients(t *testing.T) {
	e, mock := newTestEngine(t)

	mock.ExpectQuery(`SELECT client_id, client_name AS name FROM core.clients`).
		WillReturnRows(pgxmock.NewRows([]string{"client_id", "name"}).
			AddRow(int64(1), "Ada").
			AddRow(int64(2), "Grace"))

	clients, err := e.Clients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Client{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Grace"}}, clients)
}

func TestSummaries(t *testing.T) {
	e, mock := newTestEngine(t)
	q := formula.SummaryQuery()

	facts := richFacts()
	rows := pgxmock.NewRows(q.Columns)
	for _, id := range []int64{1, 2} {
		vals := make([]any, len(q.Columns))
		for i, c := range q.Columns {
			switch {
			case c == formula.ClientIDColumn:
				vals[i] = id
			case id == 1:
				vals[i] = facts[c]
			}
		}
		rows.AddRow(vals...)
	}
	mock.ExpectQuery(exactSQL(q.Statement)).WillReturnRows(rows)

	sums, err := e.Summaries(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 2)

	assert.Equal(t, "Jane Doe", sums[0].Name)
	assert.Len(t, sums[0].Metrics, len(formula.SummaryKeys))
	assert.NotNil(t, sums[0].Metrics["retirement-ratio"])

	assert.Equal(t, int64(2), sums[1].ClientID)
	assert.Equal(t, "", sums[1].Name)
	require.NotNil(t, sums[1].Metrics["net-worth"])
	assert.Equal(t, 0.0, *sums[1].Metrics["net-worth"])
	assert.Nil(t, sums[1].Metrics["retirement-ratio"])
}

func TestWithTarget(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	facts := richFacts()

	q, err := formula.MetricQuery("portfolio-value")
	require.NoError(t, err)
	expectQuery(mock, q, 4, facts)

	_, err = e.Targets().Apply(ctx, 4, map[string]float64{"portfolio-value": 1000})
	require.NoError(t, err)

	v, err := e.WithTarget(ctx, "portfolio-value", 4)
	require.NoError(t, err)
	require.NotNil(t, v.Value)
	require.NotNil(t, v.Target)
	assert.Equal(t, "Portfolio Value", v.Metadata.Title)
	assert.Equal(t, model.StatusAbove, v.Comparison.Status)
	assert.NotEmpty(t, v.Formatted)

	_, err = e.WithTarget(ctx, "bogus", 4)
	assert.True(t, errors.Is(err, formula.ErrUnknownMetric))
	_, err = e.WithTarget(ctx, "portfolio-value", 0)
	assert.True(t, errors.Is(err, ErrInvalidClient))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViews(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	expectQuery(mock, formula.BatchQuery(), 4, emptyFacts())

	require.True(t, e.Targets().SetMany(ctx, 4, map[string]float64{"net-worth": 500}))

	views, err := e.Views(ctx, 4)
	require.NoError(t, err)
	require.Len(t, views, len(formula.All()))
	assert.Equal(t, "net-worth", views[0].Key)
	assert.Equal(t, model.StatusBelow, views[0].Comparison.Status)
	assert.Equal(t, "$0", views[0].Formatted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	facts := richFacts()

	require.True(t, e.Targets().SetMany(ctx, 11, map[string]float64{"net-worth": 1, "savings-ratio": 0.2}))

	expectQuery(mock, formula.BatchQuery(), 11, facts)
	for _, key := range formula.ChartKeys() {
		c, _ := formula.LookupChart(key)
		if c.Derived() {
			continue
		}
		mock.ExpectQuery(exactSQL(*c.Stmt)).
			WithArgs(argsFor(*c.Stmt, 11)...).
			WillReturnRows(pgxmock.NewRows([]string{"category", "amount"}).AddRow("Cash", 10.0))
	}

	snap, err := e.Snapshot(ctx, 11)
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", snap.ID.String())
	assert.Equal(t, "Jane Doe", snap.ClientName)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), snap.ComputedAt)
	assert.Len(t, snap.Targets, 2)
	assert.Len(t, snap.Comparisons, len(formula.All()))
	assert.Equal(t, model.StatusAbove, snap.Comparisons["net-worth"].Status)
	assert.Equal(t, model.StatusNoTarget, snap.Comparisons["debt"].Status)
	assert.Len(t, snap.Charts, len(formula.ChartKeys()))
	assert.Len(t, snap.Charts[formula.ChartWisdomIndex], 9)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = e.Snapshot(ctx, -1)
	assert.True(t, errors.Is(err, ErrInvalidClient))
}
