package store

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/wisdom-metrics/internal/model"
)

var (
	// ErrInvalidClient is returned for a non-positive client id.
	ErrInvalidClient = eris.New("store: client id must be positive")
	// ErrInvalidTarget is returned for an empty metric name or a non-finite value.
	ErrInvalidTarget = eris.New("store: invalid target")
)

// TargetStore persists client metric targets as an append-only history.
// The current target of a (client, metric) pair is its most recent row.
type TargetStore interface {
	// Current returns the current target, or nil when none is set.
	Current(ctx context.Context, clientID int64, metric string) (*model.TargetRecord, error)
	// AllCurrent returns the current target of every metric that has one.
	AllCurrent(ctx context.Context, clientID int64) (map[string]model.TargetRecord, error)
	// Set always appends a new row, even when value equals the current
	// target, so every write is kept in the audit history.
	Set(ctx context.Context, clientID int64, metric string, value float64) (bool, error)
	// SetMany appends every changed value atomically and returns how many
	// rows were appended. Unchanged values append nothing.
	SetMany(ctx context.Context, clientID int64, targets map[string]float64) (int, error)
	// DeleteCurrent removes the current row only, exposing the previous one.
	DeleteCurrent(ctx context.Context, clientID int64, metric string) (bool, error)
	// DeleteAll removes every row of the client, or of one metric when metric
	// is non-empty.
	DeleteAll(ctx context.Context, clientID int64, metric string) (int64, error)
	// History lists rows newest first, optionally for one metric.
	History(ctx context.Context, clientID int64, metric string) ([]model.TargetRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

func validClient(clientID int64) error {
	if clientID <= 0 {
		return eris.Wrapf(ErrInvalidClient, "got %d", clientID)
	}
	return nil
}

func validTargets(clientID int64, targets map[string]float64) error {
	if err := validClient(clientID); err != nil {
		return err
	}
	for metric, v := range targets {
		if metric == "" {
			return eris.Wrap(ErrInvalidTarget, "empty metric name")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(ErrInvalidTarget, "%s: non-finite value", metric)
		}
	}
	return nil
}

// sortedMetrics returns the metric names of targets in lock order.
func sortedMetrics(targets map[string]float64) []string {
	names := make([]string, 0, len(targets))
	for m := range targets {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// valueScale is the number of decimal places two targets must agree on to
// count as the same value.
const valueScale = 6

// sameValue reports whether a and b are equal once rounded to valueScale
// decimal places.
func sameValue(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(valueScale).Equal(decimal.NewFromFloat(b).Round(valueScale))
}

// changedTargets returns the metrics of targets whose value differs from
// current, in lock order.
func changedTargets(targets, current map[string]float64) []string {
	var out []string
	for _, m := range sortedMetrics(targets) {
		if cur, ok := current[m]; ok && sameValue(cur, targets[m]) {
			continue
		}
		out = append(out, m)
	}
	return out
}
