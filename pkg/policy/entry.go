package policy

import (
	"fmt"

	"github.com/joshuapare/regenforce/pkg/types"
)

// Entry is one desired value: where it lives and what it must hold.
//
// The observation fields record what the store held at the last evaluation.
// They are guarded by the owning Set's mutex; use Observe and LastObserved
// only while holding it.
type Entry struct {
	Key      types.RegistryPath
	Name     string      // "" is the key's default value
	Raw      string      // expected value as written in the document
	Expected types.Value // decoded Raw; zero when Remove is set
	Remove   bool        // the value must not exist
	Source   string      // document name
	Line     int         // 1-based line of the entry in Source

	last *types.Value
	seen bool
}

// DisplayName renders the value name the way regedit shows it.
func (e *Entry) DisplayName() string {
	if e.Name == "" {
		return "@"
	}
	return e.Name
}

// String identifies the entry as "KEY\name".
func (e *Entry) String() string {
	return fmt.Sprintf(`%s\%s`, e.Key, e.DisplayName())
}

// Satisfied reports whether observed (nil when absent) meets the entry.
func (e *Entry) Satisfied(observed *types.Value) bool {
	if e.Remove {
		return observed == nil
	}
	return observed != nil && types.Equal(e.Expected, *observed)
}

// Observe records a new observation and returns the previous one. seen is
// false when the entry had never been observed.
func (e *Entry) Observe(v *types.Value) (prev *types.Value, seen bool) {
	prev, seen = e.last, e.seen
	e.last, e.seen = cloneValue(v), true
	return prev, seen
}

// LastObserved returns the most recent observation.
func (e *Entry) LastObserved() (v *types.Value, seen bool) {
	return cloneValue(e.last), e.seen
}

func cloneValue(v *types.Value) *types.Value {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Problem is a document line that could not become an Entry.
type Problem struct {
	Source string
	Line   int
	Text   string
	Err    error
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s:%d: %v", p.Source, p.Line, p.Err)
}

func (p Problem) Unwrap() error { return p.Err }
