// Package history reads the dated account values kept in core.account_history.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/wisdom-metrics/internal/db"
	"github.com/sells-group/wisdom-metrics/internal/model"
)

const (
	// DefaultLimit is the page size when none is given.
	DefaultLimit = 100
	// MaxLimit caps the page size.
	MaxLimit = 1000

	dateLayout = "2006-01-02"
)

var (
	// ErrInvalidClient is returned for a non-positive client id.
	ErrInvalidClient = eris.New("history: client id must be positive")
	// ErrInvalidRange is returned for a malformed or inverted date range.
	ErrInvalidRange = eris.New("history: invalid date range")
)

// Range restricts history to as_of_date values between From and To,
// inclusive. Empty bounds are open.
type Range struct {
	From string
	To   string
}

func (r Range) validate() error {
	var from, to time.Time
	var err error
	if r.From != "" {
		if from, err = time.Parse(dateLayout, r.From); err != nil {
			return eris.Wrapf(ErrInvalidRange, "from %q", r.From)
		}
	}
	if r.To != "" {
		if to, err = time.Parse(dateLayout, r.To); err != nil {
			return eris.Wrapf(ErrInvalidRange, "to %q", r.To)
		}
	}
	if r.From != "" && r.To != "" && to.Before(from) {
		return eris.Wrapf(ErrInvalidRange, "%s is after %s", r.From, r.To)
	}
	return nil
}

// where appends the range filters to a query already filtered on client and
// account ($1, $2).
func (r Range) where(sql string, args []any) (string, []any) {
	if r.From != "" {
		args = append(args, r.From)
		sql += fmt.Sprintf(" AND as_of_date >= $%d::date", len(args))
	}
	if r.To != "" {
		args = append(args, r.To)
		sql += fmt.Sprintf(" AND as_of_date <= $%d::date", len(args))
	}
	return sql, args
}

// Page selects a window of history, newest first.
type Page struct {
	Range
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Service reads account history for one client at a time.
type Service struct {
	pool        db.Pool
	concurrency int
}

// New creates a Service. concurrency bounds the multi-account fan-out.
func New(pool db.Pool, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{pool: pool, concurrency: concurrency}
}

func validClient(clientID int64) error {
	if clientID <= 0 {
		zap.L().Warn("history: invalid client id", zap.Int64("client_id", clientID))
		return eris.Wrapf(ErrInvalidClient, "got %d", clientID)
	}
	return nil
}

const accountsSQL = `
WITH account_info AS (
	SELECT account_id,
		MIN(as_of_date) AS first_date,
		MAX(as_of_date) AS last_date,
		COUNT(*) AS record_count
	FROM core.account_history
	WHERE client_id = $1
	GROUP BY account_id
),
account_values AS (
	SELECT DISTINCT ON (account_id) account_id, value AS current_value
	FROM core.account_history
	WHERE client_id = $1
	ORDER BY account_id, as_of_date DESC
)
SELECT ai.account_id::text,
	COALESCE(f.sub_type, 'Investment Account') || ' (' || ai.account_id || ')',
	COALESCE(f.fact_type_name, 'Account Type'),
	COALESCE(av.current_value, 0)::float8,
	TO_CHAR(ai.first_date, 'YYYY-MM-DD'),
	TO_CHAR(ai.last_date, 'YYYY-MM-DD'),
	ai.record_count
FROM account_info ai
LEFT JOIN account_values av ON av.account_id = ai.account_id
LEFT JOIN core.facts f ON f.fact_id = ai.account_id AND f.client_id = $1
ORDER BY ai.account_id`

// Accounts lists the client's accounts with their latest value, date range
// and record count.
func (s *Service) Accounts(ctx context.Context, clientID int64) ([]model.Account, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, accountsSQL, clientID)
	if err != nil {
		return nil, eris.Wrapf(err, "history: list accounts for client %d", clientID)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.AccountID, &a.Name, &a.Type, &a.CurrentValue, &a.StartDate, &a.EndDate, &a.TotalRecords); err != nil {
			return nil, eris.Wrap(err, "history: scan account")
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "history: iterate accounts")
	}

	zap.L().Debug("history: accounts", zap.Int64("client_id", clientID), zap.Int("count", len(accounts)))
	return accounts, nil
}

const (
	historySelect = `SELECT TO_CHAR(as_of_date, 'YYYY-MM-DD'), COALESCE(value, 0)::float8
FROM core.account_history
WHERE client_id = $1 AND account_id::text = $2`

	historyCount = `SELECT COUNT(*)
FROM core.account_history
WHERE client_id = $1 AND account_id::text = $2`
)

func collectPoints(rows pgx.Rows) ([]model.HistoryPoint, error) {
	defer rows.Close()
	points := []model.HistoryPoint{}
	for rows.Next() {
		var p model.HistoryPoint
		if err := rows.Scan(&p.AsOfDate, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// History returns one page of an account's values, newest first, with the
// total number of rows in the range.
func (s *Service) History(ctx context.Context, clientID int64, accountID string, page Page) (model.AccountHistory, error) {
	page = page.normalized()
	empty := model.AccountHistory{
		History:    []model.HistoryPoint{},
		Pagination: model.Pagination{Limit: page.Limit, Offset: page.Offset},
	}
	if err := validClient(clientID); err != nil {
		return empty, err
	}
	if err := page.validate(); err != nil {
		return empty, err
	}

	countSQL, countArgs := page.where(historyCount, []any{clientID, accountID})
	var total int64
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return empty, eris.Wrapf(err, "history: count account %s", accountID)
	}

	sql, args := page.where(historySelect, []any{clientID, accountID})
	args = append(args, page.Limit, page.Offset)
	sql += fmt.Sprintf(" ORDER BY as_of_date DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return empty, eris.Wrapf(err, "history: query account %s", accountID)
	}
	points, err := collectPoints(rows)
	if err != nil {
		return empty, eris.Wrapf(err, "history: scan account %s", accountID)
	}
	return model.AccountHistory{
		History: points,
		Pagination: model.Pagination{
			Limit:   page.Limit,
			Offset:  page.Offset,
			Total:   total,
			HasMore: int64(page.Offset+len(points)) < total,
		},
	}, nil
}

// Multi returns the full history of each account in the range, one
// statement per account run concurrently. Duplicate ids are read once.
func (s *Service) Multi(ctx context.Context, clientID int64, accountIDs []string, r Range) (map[string][]model.HistoryPoint, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}

	ids := dedupe(accountIDs)
	results := make([][]model.HistoryPoint, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			sql, args := r.where(historySelect, []any{clientID, id})
			sql += " ORDER BY as_of_date DESC"

			rows, err := s.pool.Query(gctx, sql, args...)
			if err != nil {
				return eris.Wrapf(err, "history: query account %s", id)
			}
			points, err := collectPoints(rows)
			if err != nil {
				return eris.Wrapf(err, "history: scan account %s", id)
			}
			results[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		zap.L().Error("history: multi-account read failed", zap.Int64("client_id", clientID), zap.Error(err))
		return nil, err
	}

	out := make(map[string][]model.HistoryPoint, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out, nil
}

const summarySQL = `
SELECT TO_CHAR(MIN(as_of_date), 'YYYY-MM-DD'),
	TO_CHAR(MAX(as_of_date), 'YYYY-MM-DD'),
	COALESCE(MIN(value), 0)::float8,
	COALESCE(MAX(value), 0)::float8,
	COUNT(*),
	COALESCE(AVG(value), 0)::float8,
	COALESCE((
		SELECT value FROM core.account_history
		WHERE client_id = $1 AND account_id::text = $2
		ORDER BY as_of_date DESC
		LIMIT 1
	), 0)::float8
FROM core.account_history
WHERE client_id = $1 AND account_id::text = $2`

// Summary returns statistics over an account's whole history, or nil when
// the account has no rows.
func (s *Service) Summary(ctx context.Context, clientID int64, accountID string) (*model.AccountSummary, error) {
	if err := validClient(clientID); err != nil {
		return nil, err
	}

	var first, last *string
	var sum model.AccountSummary
	err := s.pool.QueryRow(ctx, summarySQL, clientID, accountID).Scan(
		&first, &last, &sum.MinValue, &sum.MaxValue, &sum.TotalRecords, &sum.AverageValue, &sum.CurrentValue,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "history: summarize account %s", accountID)
	}
	if sum.TotalRecords == 0 {
		return nil, nil
	}
	if first != nil {
		sum.FirstDate = *first
	}
	if last != nil {
		sum.LastDate = *last
	}
	return &sum, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
