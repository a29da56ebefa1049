package watch

import (
	"time"

	"github.com/google/uuid"

	"github.com/joshuapare/regenforce/pkg/drift"
	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/types"
)

// Source names what triggered an evaluation.
type Source string

const (
	SourceBaseline Source = "baseline" // first evaluation after Start
	SourcePoll     Source = "poll"
	SourceNotify   Source = "notify"
	SourceReload   Source = "reload" // first evaluation of a reloaded set
)

// Batch is the outcome of one evaluation pass.
type Batch struct {
	ID     uuid.UUID
	Source Source
	Path   types.RegistryPath // watched key for SourceNotify, zero otherwise
	At     time.Time
	Set    *policy.Set // set the results' entries belong to

	// Drifted holds the entries that are not Matched.
	Drifted drift.Results
	// Changed holds the entries whose observation differs from the
	// previous one.
	Changed drift.Results
}

func newBatch(src Source, set *policy.Set, path types.RegistryPath, results drift.Results) Batch {
	return Batch{
		ID:      uuid.New(),
		Source:  src,
		Path:    path,
		At:      time.Now(),
		Set:     set,
		Drifted: results.Drifted(),
		Changed: results.Changed(),
	}
}

// Alert reports whether the batch should raise a user-visible alert: some
// value changed since it was last seen.
func (b Batch) Alert() bool {
	return len(b.Changed) > 0
}

// Clean reports whether every evaluated entry matched.
func (b Batch) Clean() bool {
	return len(b.Drifted) == 0
}

func (b Batch) empty() bool {
	return len(b.Drifted) == 0 && len(b.Changed) == 0
}
