package drift

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/joshuapare/regenforce/internal/logger"
	"github.com/joshuapare/regenforce/internal/metrics"
	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/store"
	"github.com/joshuapare/regenforce/pkg/types"
)

// Enforcement outcomes, as counted in metrics.
const (
	OutcomeApplied     = "applied"
	OutcomeInvalidPath = "invalid_path"
	OutcomeNotFound    = "not_found"
	OutcomeDenied      = "denied"
	OutcomeFailed      = "failed"
)

// Enforcer writes entries' expected values into a store.
type Enforcer struct {
	store   store.Accessor
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewEnforcer returns an Enforcer writing to acc. m may be nil.
func NewEnforcer(acc store.Accessor, m *metrics.Metrics) *Enforcer {
	return &Enforcer{store: acc, metrics: m, logger: logger.Component("enforcer")}
}

// Apply writes e's expected value (or deletes the value for a remove entry)
// and reads it back. Keys are never created. A write that reports success
// but does not read back as required fails with types.ErrWriteDenied. On
// success the confirmed value becomes e's last observation, so the next
// evaluation does not report the correction as a change.
func (f *Enforcer) Apply(set *policy.Set, e *policy.Entry) error {
	err := f.apply(set, e)
	outcome := outcomeOf(err)
	f.metrics.RecordEnforcement(outcome)
	if err != nil {
		f.logger.Warn().Str("entry", e.String()).Str("outcome", outcome).Err(err).Msg("Enforcement failed")
		return err
	}
	f.logger.Info().Str("entry", e.String()).Msg("Enforced value")
	return nil
}

func (f *Enforcer) apply(set *policy.Set, e *policy.Entry) error {
	var err error
	if e.Remove {
		err = f.store.Delete(e.Key, e.Name)
	} else {
		err = f.store.Set(e.Key, e.Name, e.Expected)
	}
	if err != nil {
		return fmt.Errorf("enforce %s: %w", e, err)
	}

	v, err := f.store.Get(e.Key, e.Name)
	var observed *types.Value
	switch {
	case err == nil:
		observed = &v
	case types.IsNotFound(err):
	default:
		return fmt.Errorf("enforce %s: confirm: %w", e, err)
	}
	if !e.Satisfied(observed) {
		return types.Errorf(types.ErrKindDenied, types.ErrWriteDenied, "enforce %s: value did not persist", e)
	}

	set.Lock()
	e.Observe(observed)
	set.Unlock()
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeApplied
	}
	switch types.KindOf(err) {
	case types.ErrKindPath:
		return OutcomeInvalidPath
	case types.ErrKindNotFound:
		return OutcomeNotFound
	case types.ErrKindDenied:
		return OutcomeDenied
	}
	return OutcomeFailed
}

// Outcome is the result of applying one entry.
type Outcome struct {
	Entry *policy.Entry
	Err   error
}

// ApplyAll applies every result that is not Matched, in order. One failure
// does not stop the rest.
func (f *Enforcer) ApplyAll(set *policy.Set, results Results) []Outcome {
	var out []Outcome
	for _, r := range results {
		if r.Status == Matched {
			continue
		}
		out = append(out, Outcome{Entry: r.Entry, Err: f.Apply(set, r.Entry)})
	}
	return out
}
