// Package store defines the boundary between the policy engine and a live
// registry, plus the implementations behind it.
//
// Lookup misses are reported as errors of kind types.ErrKindNotFound
// (types.ErrKeyNotFound or types.ErrValueMissing), never as panics, so
// callers can classify them as data.
package store

import (
	"github.com/joshuapare/regenforce/pkg/types"
)

// Accessor reads, writes and watches registry values.
type Accessor interface {
	// Get returns the value stored under path/name.
	Get(path types.RegistryPath, name string) (types.Value, error)
	// Set writes v under path/name. The key must already exist.
	Set(path types.RegistryPath, name string, v types.Value) error
	// Delete removes path/name. Deleting an absent value is not an error.
	Delete(path types.RegistryPath, name string) error
	// Watch arms a change notification on path (and its subtree when
	// subtree is set).
	Watch(path types.RegistryPath, subtree bool) (Waiter, error)
}

// Waiter is an armed change notification on one key.
type Waiter interface {
	// Wait blocks until the key changes. It returns types.ErrWatchClosed
	// once Close has been called, and any other error when the native
	// wait fails.
	Wait() error
	// Close interrupts a blocked Wait and releases the handle. It is safe
	// to call more than once and from another goroutine.
	Close() error
}
