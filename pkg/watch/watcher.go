// Package watch keeps a policy set under observation. A poll loop
// re-evaluates every entry on a fixed interval and one listener per key
// blocks on the store's native change notification. Both deliver their
// findings as Batch values on a single channel.
package watch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshuapare/regenforce/internal/logger"
	"github.com/joshuapare/regenforce/internal/metrics"
	"github.com/joshuapare/regenforce/pkg/drift"
	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/store"
	"github.com/joshuapare/regenforce/pkg/types"
)

const (
	// DefaultPollInterval matches the tray timer of the desktop tool.
	DefaultPollInterval = 2 * time.Second
	// DefaultBuffer is the batch channel capacity.
	DefaultBuffer = 16
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("watch: already started")
	// ErrStopped is returned by Start and Reload after Stop.
	ErrStopped = errors.New("watch: stopped")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets the poll period. Zero or less disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithNotify enables or disables per-key native listeners.
func WithNotify(enabled bool) Option {
	return func(w *Watcher) { w.notify = enabled }
}

// WithBuffer sets the batch channel capacity (minimum 1).
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		if n < 1 {
			n = 1
		}
		w.buffer = n
	}
}

// WithMetrics records evaluations, batches and listener state in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

// Watcher supervises the poll loop and the listeners.
type Watcher struct {
	store    store.Accessor
	holder   *policy.Holder
	detector *drift.Detector
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	pollInterval time.Duration
	notify       bool
	buffer       int

	batches   chan Batch
	lastDrift atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex // guards the fields below
	listeners map[string]*listener
	started   bool
	stopped   bool
}

// New returns a Watcher over the set published by holder. Polling at
// DefaultPollInterval and native listeners are both on by default.
func New(acc store.Accessor, holder *policy.Holder, opts ...Option) *Watcher {
	w := &Watcher{
		store:        acc,
		holder:       holder,
		detector:     drift.NewDetector(acc),
		logger:       logger.Component("watch"),
		pollInterval: DefaultPollInterval,
		notify:       true,
		buffer:       DefaultBuffer,
		listeners:    make(map[string]*listener),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.batches = make(chan Batch, w.buffer)
	return w
}

// Batches returns the channel batches are delivered on. It is closed by
// Stop once every goroutine has exited.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Start evaluates the current set once, then launches the poll loop and
// the listeners. The baseline batch is queued before Start returns when
// anything is off. Cancelling ctx stops the goroutines; Stop must still be
// called to join them and close the channel.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(ctx)

	set := w.holder.Load()
	b := w.evaluateAll(SourceBaseline, set)
	if !b.empty() {
		w.emit(w.ctx, b)
	}
	w.logger.Info().
		Int("entries", set.Len()).
		Int("drifted", len(b.Drifted)).
		Dur("poll", w.pollInterval).
		Bool("notify", w.notify).
		Msg("Watcher started")

	if w.notify {
		w.syncListenersLocked(set)
	}
	if w.pollInterval > 0 {
		w.wg.Add(1)
		go w.pollLoop()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		<-w.ctx.Done()
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, l := range w.listeners {
			l.stop()
		}
	}()
	return nil
}

// Reload publishes set and resyncs listeners to its key paths. Listeners
// for paths that are gone are stopped and joined, new paths get listeners
// and surviving paths keep theirs; a surviving listener that had failed is
// re-armed. The new set is baselined right away and reported as a
// SourceReload batch when anything is off.
func (w *Watcher) Reload(set *policy.Set) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	w.holder.Swap(set)
	if !w.started || w.ctx.Err() != nil {
		return nil
	}

	if w.notify {
		w.syncListenersLocked(set)
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		b := w.evaluateAll(SourceReload, set)
		if !b.empty() {
			w.emit(w.ctx, b)
		}
	}()
	w.logger.Info().Int("entries", set.Len()).Int("listeners", len(w.listeners)).Msg("Policy swapped")
	return nil
}

// Listeners reports every listener, ordered by path.
func (w *Watcher) Listeners() []ListenerStatus {
	w.mu.Lock()
	out := make([]ListenerStatus, 0, len(w.listeners))
	for _, l := range w.listeners {
		out = append(out, l.status())
	}
	w.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path.String() < out[j].Path.String()
	})
	return out
}

// Stop cancels every goroutine, interrupts blocked waits, joins them all
// and closes the batch channel. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	if started {
		w.cancel()
		w.wg.Wait()
	}
	close(w.batches)
	w.logger.Info().Msg("Watcher stopped")
}

func (w *Watcher) syncListenersLocked(set *policy.Set) {
	want := make(map[string]types.RegistryPath)
	for _, p := range set.KeyPaths() {
		want[p.Key()] = p
	}

	for k, l := range w.listeners {
		if _, ok := want[k]; ok && !l.failed() {
			continue
		}
		l.stop()
		<-l.done
		delete(w.listeners, k)
	}
	for k, p := range want {
		if _, ok := w.listeners[k]; !ok {
			w.startListenerLocked(p)
		}
	}
}

func (w *Watcher) startListenerLocked(path types.RegistryPath) {
	ctx, cancel := context.WithCancel(w.ctx)
	l := &listener{path: path, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	w.listeners[path.Key()] = l

	waiter, err := w.store.Watch(path, true)
	if err != nil {
		w.logger.Warn().Str("key", path.String()).Err(err).Msg("Cannot watch key, relying on polling")
		l.finish(err)
		close(l.done)
		return
	}
	l.waiter = waiter

	w.wg.Add(1)
	go w.runListener(l)
}

func (w *Watcher) runListener(l *listener) {
	defer w.wg.Done()
	defer close(l.done)

	w.metrics.ListenerStarted()
	log := w.logger.With().Str("key", l.path.String()).Logger()
	log.Debug().Msg("Listener waiting")

	var fatal error
	defer func() {
		l.waiter.Close()
		l.finish(fatal)
		w.metrics.ListenerStopped(fatal != nil)
	}()

	for {
		err := l.waiter.Wait()
		if l.ctx.Err() != nil || errors.Is(err, types.ErrWatchClosed) {
			return
		}
		if err != nil {
			fatal = err
			log.Error().Err(err).Msg("Listener stopped")
			return
		}

		start := time.Now()
		set := w.holder.Load()
		results := w.detector.EvaluateUnder(set, l.path)
		w.recordEvaluation(SourceNotify, results, time.Since(start))
		b := newBatch(SourceNotify, set, l.path, results)
		if !b.empty() {
			w.emit(l.ctx, b)
		}
	}
}

func (w *Watcher) pollLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll emits when something is off or changed, and once more after drift
// clears so the consumer sees the recovery.
func (w *Watcher) poll() {
	hadDrift := w.lastDrift.Load()
	b := w.evaluateAll(SourcePoll, w.holder.Load())
	if b.empty() && !hadDrift {
		return
	}
	w.emit(w.ctx, b)
}

// evaluateAll runs a full pass over set and records its outcome.
func (w *Watcher) evaluateAll(src Source, set *policy.Set) Batch {
	start := time.Now()
	results := w.detector.EvaluateAll(set)
	w.recordEvaluation(src, results, time.Since(start))
	w.metrics.SetEntries(results.Counts())

	b := newBatch(src, set, types.RegistryPath{}, results)
	w.lastDrift.Store(!b.Clean())
	return b
}

func (w *Watcher) recordEvaluation(src Source, results drift.Results, d time.Duration) {
	w.metrics.RecordEvaluation(string(src), len(results), d)
	w.metrics.RecordChanges(len(results.Changed()))
}

// emit hands b to the consumer, giving up when ctx is done.
func (w *Watcher) emit(ctx context.Context, b Batch) {
	select {
	case w.batches <- b:
		w.metrics.RecordBatch(string(b.Source))
	case <-ctx.Done():
	}
}
