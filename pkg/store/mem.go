package store

import (
	"strings"
	"sync"

	"github.com/joshuapare/regenforce/pkg/types"
)

// MemStore is an in-memory Accessor. It backs tests and offline checks
// against a snapshot, and supports failure injection for both.
type MemStore struct {
	mu       sync.Mutex
	keys     map[string]*memKey // by RegistryPath.Key()
	watchers map[*memWaiter]struct{}

	denyWrites map[string]bool  // path keys whose writes fail
	dropWrites map[string]bool  // path keys whose writes are silently lost
	waitFaults map[string]error // path key -> error for the next Wait
}

type memKey struct {
	path   types.RegistryPath
	values map[string]memValue // by lower-cased name
}

type memValue struct {
	name  string
	value types.Value
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		keys:       make(map[string]*memKey),
		watchers:   make(map[*memWaiter]struct{}),
		denyWrites: make(map[string]bool),
		dropWrites: make(map[string]bool),
		waitFaults: make(map[string]error),
	}
}

// CreateKey makes path exist. Creating an existing key is a no-op.
func (m *MemStore) CreateKey(path types.RegistryPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createKeyLocked(path)
}

func (m *MemStore) createKeyLocked(path types.RegistryPath) *memKey {
	k, ok := m.keys[path.Key()]
	if !ok {
		k = &memKey{path: path, values: make(map[string]memValue)}
		m.keys[path.Key()] = k
	}
	return k
}

// Put creates path if needed and stores v, notifying watchers. It is the
// out-of-band writer tests use to simulate someone else changing the store.
func (m *MemStore) Put(path types.RegistryPath, name string, v types.Value) {
	m.mu.Lock()
	k := m.createKeyLocked(path)
	k.values[strings.ToLower(name)] = memValue{name: name, value: v}
	m.mu.Unlock()
	m.notify(path)
}

// Remove deletes a value out of band, notifying watchers.
func (m *MemStore) Remove(path types.RegistryPath, name string) {
	m.mu.Lock()
	if k, ok := m.keys[path.Key()]; ok {
		delete(k.values, strings.ToLower(name))
	}
	m.mu.Unlock()
	m.notify(path)
}

// DenyWrites makes every Set and Delete under exactly path fail with
// types.ErrWriteDenied.
func (m *MemStore) DenyWrites(path types.RegistryPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denyWrites[path.Key()] = true
}

// DropWrites makes Set and Delete under path report success without
// changing anything, the way a policy-managed key can revert writes.
func (m *MemStore) DropWrites(path types.RegistryPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropWrites[path.Key()] = true
}

// FailNextWait makes the next Wait on a waiter for path return err.
func (m *MemStore) FailNextWait(path types.RegistryPath, err error) {
	m.mu.Lock()
	m.waitFaults[path.Key()] = err
	var targets []*memWaiter
	for w := range m.watchers {
		if w.path.Key() == path.Key() {
			targets = append(targets, w)
		}
	}
	m.mu.Unlock()
	// Wake blocked waiters so they pick the fault up.
	for _, w := range targets {
		w.signal()
	}
}

// Get implements Accessor.
func (m *MemStore) Get(path types.RegistryPath, name string) (types.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[path.Key()]
	if !ok {
		return types.Value{}, types.Errorf(types.ErrKindNotFound, types.ErrKeyNotFound, "get %s", path)
	}
	v, ok := k.values[strings.ToLower(name)]
	if !ok {
		return types.Value{}, types.Errorf(types.ErrKindNotFound, types.ErrValueMissing, "get %s\\%s", path, name)
	}
	return v.value, nil
}

// Set implements Accessor.
func (m *MemStore) Set(path types.RegistryPath, name string, v types.Value) error {
	m.mu.Lock()
	k, err := m.writableLocked(path, "set")
	if err != nil || k == nil {
		m.mu.Unlock()
		return err
	}
	k.values[strings.ToLower(name)] = memValue{name: name, value: v}
	m.mu.Unlock()
	m.notify(path)
	return nil
}

// Delete implements Accessor.
func (m *MemStore) Delete(path types.RegistryPath, name string) error {
	m.mu.Lock()
	k, err := m.writableLocked(path, "delete")
	if err != nil || k == nil {
		m.mu.Unlock()
		return err
	}
	_, existed := k.values[strings.ToLower(name)]
	delete(k.values, strings.ToLower(name))
	m.mu.Unlock()
	if existed {
		m.notify(path)
	}
	return nil
}

// writableLocked returns the key for a write, or nil without error when the
// write should be dropped.
func (m *MemStore) writableLocked(path types.RegistryPath, op string) (*memKey, error) {
	k, ok := m.keys[path.Key()]
	if !ok {
		return nil, types.Errorf(types.ErrKindNotFound, types.ErrKeyNotFound, "%s %s", op, path)
	}
	if m.denyWrites[path.Key()] {
		return nil, types.Errorf(types.ErrKindDenied, types.ErrWriteDenied, "%s %s", op, path)
	}
	if m.dropWrites[path.Key()] {
		return nil, nil
	}
	return k, nil
}

// Watch implements Accessor. Watching a key that does not exist fails with
// types.ErrKeyNotFound, as it does against the live registry.
func (m *MemStore) Watch(path types.RegistryPath, subtree bool) (Waiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[path.Key()]; !ok {
		return nil, types.Errorf(types.ErrKindNotFound, types.ErrKeyNotFound, "watch %s", path)
	}
	w := &memWaiter{
		store:   m,
		path:    path,
		subtree: subtree,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	m.watchers[w] = struct{}{}
	return w, nil
}

// Watchers returns how many waiters are armed.
func (m *MemStore) Watchers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

func (m *MemStore) notify(changed types.RegistryPath) {
	m.mu.Lock()
	var targets []*memWaiter
	for w := range m.watchers {
		if w.matches(changed) {
			targets = append(targets, w)
		}
	}
	m.mu.Unlock()
	for _, w := range targets {
		w.signal()
	}
}

func (m *MemStore) takeFault(path types.RegistryPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err, ok := m.waitFaults[path.Key()]
	if ok {
		delete(m.waitFaults, path.Key())
	}
	return err
}

func (m *MemStore) release(w *memWaiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watchers, w)
}

type memWaiter struct {
	store   *MemStore
	path    types.RegistryPath
	subtree bool
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (w *memWaiter) matches(changed types.RegistryPath) bool {
	if w.subtree {
		return w.path.Contains(changed)
	}
	return w.path.Key() == changed.Key()
}

// signal coalesces wakeups the way the native primitive does: one pending
// notification at most.
func (w *memWaiter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *memWaiter) Wait() error {
	select {
	case <-w.done:
		return types.ErrWatchClosed
	case <-w.wake:
	}
	select {
	case <-w.done:
		return types.ErrWatchClosed
	default:
	}
	if err := w.store.takeFault(w.path); err != nil {
		return types.Errorf(types.ErrKindWait, types.ErrNativeWait, "wait %s: %v", w.path, err)
	}
	return nil
}

func (w *memWaiter) Close() error {
	w.once.Do(func() {
		close(w.done)
		w.store.release(w)
	})
	return nil
}
