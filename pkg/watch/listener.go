package watch

import (
	"context"
	"sync"

	"github.com/joshuapare/regenforce/pkg/store"
	"github.com/joshuapare/regenforce/pkg/types"
)

// ListenerState is the lifecycle state of a change listener.
type ListenerState int

const (
	// Waiting means the listener is armed on its key.
	Waiting ListenerState = iota
	// Stopped means the listener has exited, on request or after a
	// native wait failure.
	Stopped
)

func (s ListenerState) String() string {
	if s == Waiting {
		return "waiting"
	}
	return "stopped"
}

// ListenerStatus describes one listener.
type ListenerStatus struct {
	Path  types.RegistryPath
	State ListenerState
	Err   error // why the listener stopped, nil on request
}

type listener struct {
	path   types.RegistryPath
	waiter store.Waiter
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state ListenerState
	err   error
}

func (l *listener) status() ListenerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ListenerStatus{Path: l.path, State: l.state, Err: l.err}
}

func (l *listener) finish(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = Stopped
	l.err = err
}

// stop cancels the listener and interrupts a blocked wait. It does not
// wait for the goroutine to exit; receive from done for that.
func (l *listener) stop() {
	l.cancel()
	if l.waiter != nil {
		l.waiter.Close()
	}
}

func (l *listener) failed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == Stopped && l.err != nil
}
