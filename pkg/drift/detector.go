package drift

import (
	"github.com/rs/zerolog"

	"github.com/joshuapare/regenforce/internal/logger"
	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/store"
	"github.com/joshuapare/regenforce/pkg/types"
)

// Detector reads entries from a store and classifies them.
type Detector struct {
	store  store.Accessor
	logger zerolog.Logger
}

// NewDetector returns a Detector reading from acc.
func NewDetector(acc store.Accessor) *Detector {
	return &Detector{store: acc, logger: logger.Component("drift")}
}

// Evaluate reads e, classifies it and records the observation. The set's
// lock is held for the whole read-compare-update so concurrent triggers on
// the same entry serialize.
func (d *Detector) Evaluate(set *policy.Set, e *policy.Entry) Result {
	set.Lock()
	defer set.Unlock()
	return d.evaluateLocked(e)
}

func (d *Detector) evaluateLocked(e *policy.Entry) Result {
	res := Result{Entry: e}

	v, err := d.store.Get(e.Key, e.Name)
	var observed *types.Value
	switch {
	case err == nil:
		observed = &v
	case types.IsNotFound(err):
	default:
		// The value's state is unknown; keep the previous observation.
		d.logger.Warn().Str("entry", e.String()).Err(err).Msg("Failed to read value")
		res.Status = Missing
		res.Err = err
		return res
	}

	res.Observed = observed
	switch {
	case e.Satisfied(observed):
		res.Status = Matched
	case observed == nil:
		res.Status = Missing
	default:
		res.Status = Drifted
	}

	prev, seen := e.Observe(observed)
	res.Changed = seen && !types.EqualPtr(prev, observed)
	if res.Changed {
		d.logger.Debug().Str("entry", e.String()).Stringer("status", res.Status).Msg("Value changed")
	}
	return res
}

// EvaluateAll evaluates every entry of set in document order.
func (d *Detector) EvaluateAll(set *policy.Set) Results {
	return d.evaluate(set, set.Entries())
}

// EvaluateUnder evaluates the entries whose key lies under path.
func (d *Detector) EvaluateUnder(set *policy.Set, path types.RegistryPath) Results {
	return d.evaluate(set, set.Under(path))
}

func (d *Detector) evaluate(set *policy.Set, entries []*policy.Entry) Results {
	out := make(Results, 0, len(entries))
	for _, e := range entries {
		out = append(out, d.Evaluate(set, e))
	}
	return out
}
