package wisdom

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wisdom-metrics/internal/formula"
	"github.com/sells-group/wisdom-metrics/internal/model"
	"github.com/sells-group/wisdom-metrics/internal/store"
)

// Targets is the client-facing view of the target store. Only catalog
// metrics may carry targets.
//
// Get, GetAll, SetMany, Delete and DeleteAll degrade failures to empty
// results or false. Apply, Remove, Clear and History return errors.
type Targets struct {
	store store.TargetStore
}

// Store returns the underlying target store.
func (t *Targets) Store() store.TargetStore {
	return t.store
}

func knownMetric(metric string) error {
	_, err := formula.Lookup(metric)
	return err
}

// Get returns the current target of one metric, or nil.
func (t *Targets) Get(ctx context.Context, clientID int64, metric string) *float64 {
	rec, err := t.store.Current(ctx, clientID, metric)
	if err != nil {
		zap.L().Error("wisdom: read target", zap.Int64("client_id", clientID), zap.String("metric", metric), zap.Error(err))
		return nil
	}
	if rec == nil {
		return nil
	}
	v := rec.Value
	return &v
}

// GetAll returns the current target of every metric that has one.
func (t *Targets) GetAll(ctx context.Context, clientID int64) map[string]float64 {
	recs, err := t.store.AllCurrent(ctx, clientID)
	if err != nil {
		zap.L().Error("wisdom: read targets", zap.Int64("client_id", clientID), zap.Error(err))
		return map[string]float64{}
	}
	out := make(map[string]float64, len(recs))
	for m, r := range recs {
		out[m] = r.Value
	}
	return out
}

// Apply appends every changed target and returns how many rows were added.
func (t *Targets) Apply(ctx context.Context, clientID int64, targets map[string]float64) (int, error) {
	for metric := range targets {
		if err := knownMetric(metric); err != nil {
			return 0, err
		}
	}
	n, err := t.store.SetMany(ctx, clientID, targets)
	if err != nil {
		return 0, eris.Wrapf(err, "wisdom: set targets for client %d", clientID)
	}
	return n, nil
}

// SetMany appends every changed target. Setting unchanged values succeeds
// without writing.
func (t *Targets) SetMany(ctx context.Context, clientID int64, targets map[string]float64) bool {
	if _, err := t.Apply(ctx, clientID, targets); err != nil {
		zap.L().Error("wisdom: set targets", zap.Int64("client_id", clientID), zap.Error(err))
		return false
	}
	return true
}

// Remove deletes the current target of a metric, restoring the previous one.
// It reports whether a row was removed.
func (t *Targets) Remove(ctx context.Context, clientID int64, metric string) (bool, error) {
	if err := knownMetric(metric); err != nil {
		return false, err
	}
	ok, err := t.store.DeleteCurrent(ctx, clientID, metric)
	if err != nil {
		return false, eris.Wrapf(err, "wisdom: delete target %s", metric)
	}
	return ok, nil
}

// Delete is Remove with failures reported as false.
func (t *Targets) Delete(ctx context.Context, clientID int64, metric string) bool {
	ok, err := t.Remove(ctx, clientID, metric)
	if err != nil {
		zap.L().Error("wisdom: delete target", zap.Int64("client_id", clientID), zap.String("metric", metric), zap.Error(err))
		return false
	}
	return ok
}

// Clear deletes the whole target history of a client, or of one metric when
// metric is non-empty, and returns the number of rows removed.
func (t *Targets) Clear(ctx context.Context, clientID int64, metric string) (int64, error) {
	if metric != "" {
		if err := knownMetric(metric); err != nil {
			return 0, err
		}
	}
	n, err := t.store.DeleteAll(ctx, clientID, metric)
	if err != nil {
		return 0, eris.Wrapf(err, "wisdom: clear targets for client %d", clientID)
	}
	return n, nil
}

// DeleteAll is Clear reporting success. Clearing an empty history succeeds.
func (t *Targets) DeleteAll(ctx context.Context, clientID int64, metric string) bool {
	if _, err := t.Clear(ctx, clientID, metric); err != nil {
		zap.L().Error("wisdom: clear targets", zap.Int64("client_id", clientID), zap.Error(err))
		return false
	}
	return true
}

// History lists target rows newest first, optionally for one metric.
func (t *Targets) History(ctx context.Context, clientID int64, metric string) ([]model.TargetRecord, error) {
	if metric != "" {
		if err := knownMetric(metric); err != nil {
			return nil, err
		}
	}
	return t.store.History(ctx, clientID, metric)
}
