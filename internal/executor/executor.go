// Package executor runs compiled statements against the fact store and turns
// driver results into metric outcomes and normalized records.
package executor

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wisdom-metrics/internal/binder"
	"github.com/sells-group/wisdom-metrics/internal/db"
	"github.com/sells-group/wisdom-metrics/internal/model"
	"github.com/sells-group/wisdom-metrics/internal/numeric"
)

// ErrInvalidClient is returned for a non-positive client id. No query is
// issued for it.
var ErrInvalidClient = eris.New("executor: client id must be positive")

// Error tags a failure with its kind.
type Error struct {
	Kind model.ErrorKind
	Err  error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err. Untagged errors are store failures.
func KindOf(err error) model.ErrorKind {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return model.ErrStore
}

// Outcome converts err into a failed outcome, keeping its kind.
func Outcome(err error) model.Outcome {
	return model.Failed(KindOf(err), err)
}

// Executor runs statements on a pool. The pool owns connections; the
// executor only borrows one per call.
type Executor struct {
	pool db.Pool
}

// New creates an Executor over pool.
func New(pool db.Pool) *Executor {
	return &Executor{pool: pool}
}

// Pool returns the underlying pool.
func (x *Executor) Pool() db.Pool {
	return x.pool
}

func validClient(st binder.Statement, clientID int64) error {
	if clientID <= 0 {
		zap.L().Warn("executor: invalid client id",
			zap.String("statement", st.Name),
			zap.Int64("client_id", clientID),
		)
		return &Error{Kind: model.ErrInvalidInput, Err: eris.Wrapf(ErrInvalidClient, "got %d", clientID)}
	}
	return nil
}

// bind validates clientID and returns the statement arguments.
func bind(st binder.Statement, clientID int64) ([]any, error) {
	if err := validClient(st, clientID); err != nil {
		return nil, err
	}
	args, err := st.Bind(clientID)
	if err != nil {
		zap.L().Error("executor: bind", zap.String("statement", st.Name), zap.Error(err))
		return nil, &Error{Kind: model.ErrBinding, Err: err}
	}
	return args, nil
}

// Query runs st with explicit arguments and returns every row. Column names
// are taken from the field descriptions before rows are read. Numeric values
// are normalized to float64 and integers to int64.
func (x *Executor) Query(ctx context.Context, st binder.Statement, args ...any) ([]model.Record, error) {
	if err := st.Check(args); err != nil {
		zap.L().Error("executor: bind", zap.String("statement", st.Name), zap.Error(err))
		return nil, &Error{Kind: model.ErrBinding, Err: err}
	}

	zap.L().Debug("executor: query",
		zap.String("statement", st.Name),
		zap.Int("params", st.Params),
		zap.Any("args", args),
	)

	rows, err := x.pool.Query(ctx, st.SQL, args...)
	if err != nil {
		zap.L().Error("executor: query failed", zap.String("statement", st.Name), zap.Error(err))
		return nil, &Error{Kind: model.ErrStore, Err: eris.Wrapf(err, "executor: query %s", st.Name)}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []model.Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			zap.L().Error("executor: read row", zap.String("statement", st.Name), zap.Error(err))
			return nil, &Error{Kind: model.ErrStore, Err: eris.Wrapf(err, "executor: read %s", st.Name)}
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			if i < len(vals) {
				rec[c] = numeric.Normalize(vals[i])
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("executor: iterate rows", zap.String("statement", st.Name), zap.Error(err))
		return nil, &Error{Kind: model.ErrStore, Err: eris.Wrapf(err, "executor: iterate %s", st.Name)}
	}

	zap.L().Debug("executor: result",
		zap.String("statement", st.Name),
		zap.Int("rows", len(out)),
		zap.Any("columns", cols),
	)
	return out, nil
}

// Table runs a client-scoped statement and returns every row.
func (x *Executor) Table(ctx context.Context, st binder.Statement, clientID int64) ([]model.Record, error) {
	args, err := bind(st, clientID)
	if err != nil {
		return nil, err
	}
	return x.Query(ctx, st, args...)
}

// Records is Table for callers that render results directly: any failure
// yields an empty slice.
func (x *Executor) Records(ctx context.Context, st binder.Statement, clientID int64) []model.Record {
	recs, err := x.Table(ctx, st, clientID)
	if err != nil || recs == nil {
		return []model.Record{}
	}
	return recs
}

// Row runs a client-scoped statement and returns its first row, or nil when
// it returned no rows.
func (x *Executor) Row(ctx context.Context, st binder.Statement, clientID int64) (model.Record, error) {
	recs, err := x.Table(ctx, st, clientID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	zap.L().Debug("executor: row", zap.String("statement", st.Name), zap.Any("row", recs[0]))
	return recs[0], nil
}

// Scalar runs a client-scoped statement and coerces the first column of its
// first row. Zero rows or a NULL value yield NoData.
func (x *Executor) Scalar(ctx context.Context, st binder.Statement, clientID int64) model.Outcome {
	args, err := bind(st, clientID)
	if err != nil {
		return Outcome(err)
	}

	zap.L().Debug("executor: scalar",
		zap.String("statement", st.Name),
		zap.Int("params", st.Params),
		zap.Any("args", args),
	)

	rows, err := x.pool.Query(ctx, st.SQL, args...)
	if err != nil {
		zap.L().Error("executor: query failed", zap.String("statement", st.Name), zap.Error(err))
		return model.Failed(model.ErrStore, eris.Wrapf(err, "executor: query %s", st.Name))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			zap.L().Error("executor: iterate rows", zap.String("statement", st.Name), zap.Error(err))
			return model.Failed(model.ErrStore, eris.Wrapf(err, "executor: iterate %s", st.Name))
		}
		return model.NoData()
	}

	vals, err := rows.Values()
	if err != nil {
		zap.L().Error("executor: read row", zap.String("statement", st.Name), zap.Error(err))
		return model.Failed(model.ErrStore, eris.Wrapf(err, "executor: read %s", st.Name))
	}
	zap.L().Debug("executor: raw result", zap.String("statement", st.Name), zap.Any("values", vals))
	if len(vals) == 0 {
		return model.NoData()
	}

	v, ok, err := numeric.Float(vals[0])
	if err != nil {
		zap.L().Warn("executor: non-numeric result",
			zap.String("statement", st.Name),
			zap.Any("value", vals[0]),
			zap.Error(err),
		)
		return model.Failed(model.ErrCoercion, eris.Wrapf(err, "executor: coerce %s", st.Name))
	}
	if !ok {
		return model.NoData()
	}
	return model.OK(v)
}
