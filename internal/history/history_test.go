package history

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockService(t *testing.T, concurrency int) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return New(mock, concurrency), mock
}

var pointColumns = []string{"as_of_date", "value"}

func TestAccounts(t *testing.T) {
	s, mock := newMockService(t, 1)

	mock.ExpectQuery(`WITH account_info AS`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "name", "type", "current_value", "start_date", "end_date", "total_records"}).
			AddRow("A1", "Brokerage (A1)", "Investment", 1500.0, "2024-01-01", "2024-06-30", int64(6)).
			AddRow("A2", "Investment Account (A2)", "Account Type", 0.0, "2024-03-01", "2024-03-01", int64(1)))

	accounts, err := s.Accounts(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "A1", accounts[0].AccountID)
	assert.Equal(t, "Brokerage (A1)", accounts[0].Name)
	assert.Equal(t, 1500.0, accounts[0].CurrentValue)
	assert.Equal(t, "2024-06-30", accounts[0].EndDate)
	assert.Equal(t, int64(6), accounts[0].TotalRecords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccounts_InvalidClient(t *testing.T) {
	s, mock := newMockService(t, 1)

	_, err := s.Accounts(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrInvalidClient))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccounts_QueryError(t *testing.T) {
	s, mock := newMockService(t, 1)

	mock.ExpectQuery(`WITH account_info AS`).
		WithArgs(int64(7)).
		WillReturnError(errors.New("connection refused"))

	_, err := s.Accounts(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list accounts")
}

func TestHistory_Pagination(t *testing.T) {
	s, mock := newMockService(t, 1)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM core.account_history WHERE client_id = \$1 AND account_id::text = \$2$`).
		WithArgs(int64(7), "A1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))
	mock.ExpectQuery(`ORDER BY as_of_date DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(int64(7), "A1", 2, 2).
		WillReturnRows(pgxmock.NewRows(pointColumns).
			AddRow("2024-04-30", 120.0).
			AddRow("2024-03-31", 110.0))

	h, err := s.History(context.Background(), 7, "A1", Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, h.History, 2)
	assert.Equal(t, "2024-04-30", h.History[0].AsOfDate)
	assert.Equal(t, int64(5), h.Pagination.Total)
	assert.True(t, h.Pagination.HasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_LastPage(t *testing.T) {
	s, mock := newMockService(t, 1)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(int64(7), "A1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))
	mock.ExpectQuery(`LIMIT \$3 OFFSET \$4`).
		WithArgs(int64(7), "A1", 2, 4).
		WillReturnRows(pgxmock.NewRows(pointColumns).AddRow("2024-01-31", 100.0))

	h, err := s.History(context.Background(), 7, "A1", Page{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, h.History, 1)
	assert.False(t, h.Pagination.HasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_DateRange(t *testing.T) {
	s, mock := newMockService(t, 1)

	mock.ExpectQuery(`as_of_date >= \$3::date AND as_of_date <= \$4::date$`).
		WithArgs(int64(7), "A1", "2024-01-01", "2024-12-31").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`as_of_date <= \$4::date ORDER BY as_of_date DESC LIMIT \$5 OFFSET \$6`).
		WithArgs(int64(7), "A1", "2024-01-01", "2024-12-31", DefaultLimit, 0).
		WillReturnRows(pgxmock.NewRows(pointColumns))

	h, err := s.History(context.Background(), 7, "A1", Page{Range: Range{From: "2024-01-01", To: "2024-12-31"}})
	require.NoError(t, err)
	assert.NotNil(t, h.History)
	assert.Empty(t, h.History)
	assert.Equal(t, DefaultLimit, h.Pagination.Limit)
	assert.False(t, h.Pagination.HasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_InvalidRange(t *testing.T) {
	s, mock := newMockService(t, 1)

	tests := []Range{
		{From: "01/02/2024"},
		{To: "2024-13-01"},
		{From: "2024-06-01", To: "2024-01-01"},
	}
	for _, r := range tests {
		_, err := s.History(context.Background(), 7, "A1", Page{Range: r})
		assert.True(t, errors.Is(err, ErrInvalidRange), "range %+v", r)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_CountError(t *testing.T) {
	s, mock := newMockService(t, 1)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(int64(7), "A1").
		WillReturnError(errors.New("timeout"))

	h, err := s.History(context.Background(), 7, "A1", Page{})
	require.Error(t, err)
	assert.Empty(t, h.History)
	assert.Equal(t, int64(0), h.Pagination.Total)
}

func TestPageNormalized(t *testing.T) {
	assert.Equal(t, DefaultLimit, Page{}.normalized().Limit)
	assert.Equal(t, MaxLimit, Page{Limit: 5000}.normalized().Limit)
	assert.Equal(t, 0, Page{Offset: -3}.normalized().Offset)
}

func TestMulti(t *testing.T) {
	s, mock := newMockService(t, 2)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`ORDER BY as_of_date DESC$`).
		WithArgs(int64(7), "A1").
		WillReturnRows(pgxmock.NewRows(pointColumns).AddRow("2024-02-01", 20.0).AddRow("2024-01-01", 10.0))
	mock.ExpectQuery(`ORDER BY as_of_date DESC$`).
		WithArgs(int64(7), "A2").
		WillReturnRows(pgxmock.NewRows(pointColumns))

	out, err := s.Multi(context.Background(), 7, []string{"A1", "A2", "A1", " "}, Range{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Len(t, out["A1"], 2)
	assert.NotNil(t, out["A2"])
	assert.Empty(t, out["A2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMulti_Empty(t *testing.T) {
	s, mock := newMockService(t, 2)

	out, err := s.Multi(context.Background(), 7, nil, Range{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMulti_Error(t *testing.T) {
	s, mock := newMockService(t, 1)

	mock.ExpectQuery(`FROM core.account_history`).
		WithArgs(int64(7), "A1", "2024-01-01").
		WillReturnError(errors.New("connection reset"))

	_, err := s.Multi(context.Background(), 7, []string{"A1"}, Range{From: "2024-01-01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query account A1")
}

var summaryColumns = []string{"first_date", "last_date", "min_value", "max_value", "total_records", "average_value", "current_value"}

func TestSummary(t *testing.T) {
	s, mock := newMockService(t, 1)

	first, last := "2024-01-01", "2024-06-30"
	mock.ExpectQuery(`COALESCE\(AVG\(value\), 0\)`).
		WithArgs(int64(7), "A1").
		WillReturnRows(pgxmock.NewRows(summaryColumns).
			AddRow(&first, &last, 90.0, 150.0, int64(6), 120.0, 150.0))

	sum, err := s.Summary(context.Background(), 7, "A1")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "2024-01-01", sum.FirstDate)
	assert.Equal(t, "2024-06-30", sum.LastDate)
	assert.Equal(t, 90.0, sum.MinValue)
	assert.Equal(t, 150.0, sum.MaxValue)
	assert.Equal(t, 120.0, sum.AverageValue)
	assert.Equal(t, 150.0, sum.CurrentValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummary_NoRecords(t *testing.T) {
	s, mock := newMockService(t, 1)

	var none *string
	mock.ExpectQuery(`COALESCE\(AVG\(value\), 0\)`).
		WithArgs(int64(7), "missing").
		WillReturnRows(pgxmock.NewRows(summaryColumns).
			AddRow(none, none, 0.0, 0.0, int64(0), 0.0, 0.0))

	sum, err := s.Summary(context.Background(), 7, "missing")
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", " b ", "a", ""}))
}
