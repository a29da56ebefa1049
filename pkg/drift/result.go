// Package drift compares policy entries with a store and writes corrections.
package drift

import (
	"fmt"

	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/types"
)

// Status classifies one entry against the store.
type Status int

const (
	// Matched means the store holds what the entry requires.
	Matched Status = iota
	// Drifted means the store holds something else.
	Drifted
	// Missing means the key or value does not exist, or could not be read.
	Missing
)

var statusNames = [...]string{
	Matched: "matched",
	Drifted: "drifted",
	Missing: "missing",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText renders the status name in JSON and YAML reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of evaluating one entry.
type Result struct {
	Entry    *policy.Entry
	Observed *types.Value // nil when absent
	Status   Status
	Changed  bool  // observation differs from the previous one
	Err      error // read failure other than not-found
}

// Results is an evaluation pass in document order.
type Results []Result

// Drifted returns the results that are not Matched.
func (rs Results) Drifted() Results {
	var out Results
	for _, r := range rs {
		if r.Status != Matched {
			out = append(out, r)
		}
	}
	return out
}

// Changed returns the results whose observation changed.
func (rs Results) Changed() Results {
	var out Results
	for _, r := range rs {
		if r.Changed {
			out = append(out, r)
		}
	}
	return out
}

// Counts tallies the results by status.
func (rs Results) Counts() (matched, drifted, missing int) {
	for _, r := range rs {
		switch r.Status {
		case Matched:
			matched++
		case Drifted:
			drifted++
		case Missing:
			missing++
		}
	}
	return matched, drifted, missing
}

// Clean reports whether every result is Matched.
func (rs Results) Clean() bool {
	for _, r := range rs {
		if r.Status != Matched {
			return false
		}
	}
	return true
}
