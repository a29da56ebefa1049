//go:build !windows

package store

import (
	"runtime"

	"github.com/joshuapare/regenforce/pkg/types"
)

// OpenRegistry fails on platforms without a registry. Use a snapshot there.
func OpenRegistry() (Accessor, error) {
	return nil, types.Errorf(types.ErrKindUnsupported, types.ErrUnsupported,
		"live registry is not available on %s", runtime.GOOS)
}
