package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/joshuapare/regenforce/internal/logger"
)

// DefaultReloadDelay coalesces the burst of events an editor save produces.
const DefaultReloadDelay = 500 * time.Millisecond

// Reloader rebuilds the policy Set whenever documents in a folder change.
type Reloader struct {
	dir    string
	opts   LoadOptions
	delay  time.Duration
	logger zerolog.Logger
}

// NewReloader watches dir. A zero delay selects DefaultReloadDelay.
func NewReloader(dir string, opts LoadOptions, delay time.Duration) *Reloader {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	return &Reloader{
		dir:    dir,
		opts:   opts,
		delay:  delay,
		logger: logger.Component("policy-reloader"),
	}
}

// Run blocks until ctx is done, calling apply with a freshly loaded Set
// after each debounced burst of document changes. A load that fails is
// logged and the previous Set stays in force.
func (r *Reloader) Run(ctx context.Context, apply func(*Set)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("policy: watch %s: %w", r.dir, err)
	}
	r.logger.Info().Str("dir", r.dir).Msg("Watching policy folder")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsDocument(event.Name) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			r.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Policy document changed")
			if timer == nil {
				timer = time.NewTimer(r.delay)
			} else {
				timer.Reset(r.delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			set, err := LoadDir(r.dir, r.opts)
			if err != nil {
				r.logger.Error().Err(err).Msg("Failed to reload policy")
				continue
			}
			r.logger.Info().Int("entries", set.Len()).Int("problems", len(set.Problems())).Msg("Policy reloaded")
			apply(set)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
