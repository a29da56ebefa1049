//go:build windows

package store

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/joshuapare/regenforce/pkg/types"
)

// notifyFilter selects value writes and subkey add/remove.
const notifyFilter = windows.REG_NOTIFY_CHANGE_NAME |
	windows.REG_NOTIFY_CHANGE_LAST_SET |
	windows.REG_NOTIFY_THREAD_AGNOSTIC

// Registry is the live Windows registry.
type Registry struct{}

// OpenRegistry returns the live registry accessor.
func OpenRegistry() (Accessor, error) {
	return &Registry{}, nil
}

func hiveRoot(h types.Hive) (registry.Key, error) {
	switch h {
	case types.LocalMachine:
		return registry.LOCAL_MACHINE, nil
	case types.CurrentUser:
		return registry.CURRENT_USER, nil
	case types.ClassesRoot:
		return registry.CLASSES_ROOT, nil
	case types.Users:
		return registry.USERS, nil
	case types.CurrentConfig:
		return registry.CURRENT_CONFIG, nil
	}
	return 0, types.Errorf(types.ErrKindPath, types.ErrUnknownHive, "hive %d", h)
}

func openKey(path types.RegistryPath, access uint32, op string) (registry.Key, error) {
	root, err := hiveRoot(path.Hive)
	if err != nil {
		return 0, err
	}
	k, err := registry.OpenKey(root, path.SubkeyPath(), access)
	if err != nil {
		return 0, mapErr(err, types.ErrKeyNotFound, "%s %s", op, path)
	}
	return k, nil
}

// mapErr classifies a Win32 error. notFound is the sentinel to use when the
// object is missing, which differs between key opens and value reads.
func mapErr(err error, notFound error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, registry.ErrNotExist):
		return types.Errorf(types.ErrKindNotFound, notFound, "%s", msg)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return types.Errorf(types.ErrKindDenied, types.ErrWriteDenied, "%s: %v", msg, err)
	}
	return fmt.Errorf("store: %s: %w", msg, err)
}

// Get implements Accessor.
func (r *Registry) Get(path types.RegistryPath, name string) (types.Value, error) {
	k, err := openKey(path, registry.QUERY_VALUE, "get")
	if err != nil {
		return types.Value{}, err
	}
	defer k.Close()

	n, valtype, err := k.GetValue(name, nil)
	if err != nil {
		return types.Value{}, mapErr(err, types.ErrValueMissing, `get %s\%s`, path, name)
	}

	switch types.RegType(valtype) {
	case types.REG_SZ, types.REG_EXPAND_SZ:
		s, _, err := k.GetStringValue(name)
		if err != nil {
			return types.Value{}, mapErr(err, types.ErrValueMissing, `get %s\%s`, path, name)
		}
		if valtype == registry.EXPAND_SZ {
			return types.ExpandString(s), nil
		}
		return types.String(s), nil
	case types.REG_DWORD:
		n, _, err := k.GetIntegerValue(name)
		if err != nil {
			return types.Value{}, mapErr(err, types.ErrValueMissing, `get %s\%s`, path, name)
		}
		return types.DWord(uint32(n)), nil
	case types.REG_QWORD:
		n, _, err := k.GetIntegerValue(name)
		if err != nil {
			return types.Value{}, mapErr(err, types.ErrValueMissing, `get %s\%s`, path, name)
		}
		return types.QWord(n), nil
	case types.REG_MULTI_SZ:
		strs, _, err := k.GetStringsValue(name)
		if err != nil {
			return types.Value{}, mapErr(err, types.ErrValueMissing, `get %s\%s`, path, name)
		}
		return types.MultiString(strs), nil
	case types.REG_BINARY:
		data, _, err := k.GetBinaryValue(name)
		if err != nil {
			return types.Value{}, mapErr(err, types.ErrValueMissing, `get %s\%s`, path, name)
		}
		return types.Binary(data), nil
	}
	// Types a policy cannot declare still exist, so they come back as raw
	// bytes and compare unequal to any desired value.
	buf := make([]byte, n)
	n, _, err = k.GetValue(name, buf)
	if err != nil {
		return types.Value{}, mapErr(err, types.ErrValueMissing, `get %s\%s`, path, name)
	}
	return types.Raw(types.RegType(valtype), buf[:n]), nil
}

// Set implements Accessor. The key is opened, never created.
func (r *Registry) Set(path types.RegistryPath, name string, v types.Value) error {
	k, err := openKey(path, registry.SET_VALUE, "set")
	if err != nil {
		return err
	}
	defer k.Close()

	switch v.Type {
	case types.REG_SZ:
		err = k.SetStringValue(name, v.Str())
	case types.REG_EXPAND_SZ:
		err = k.SetExpandStringValue(name, v.Str())
	case types.REG_DWORD:
		err = k.SetDWordValue(name, v.DWord())
	case types.REG_QWORD:
		err = k.SetQWordValue(name, v.QWord())
	case types.REG_MULTI_SZ:
		err = k.SetStringsValue(name, v.Strings())
	case types.REG_BINARY:
		err = k.SetBinaryValue(name, v.Bytes())
	default:
		return types.Errorf(types.ErrKindUnsupported, types.ErrUnsupported,
			`set %s\%s: value type %s`, path, name, v.Type)
	}
	if err != nil {
		return mapErr(err, types.ErrKeyNotFound, `set %s\%s`, path, name)
	}
	return nil
}

// Delete implements Accessor.
func (r *Registry) Delete(path types.RegistryPath, name string) error {
	k, err := openKey(path, registry.SET_VALUE, "delete")
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.DeleteValue(name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return mapErr(err, types.ErrValueMissing, `delete %s\%s`, path, name)
	}
	return nil
}

// Watch implements Accessor. The returned waiter re-arms the notification
// before every Wait, since a registry notification fires once.
func (r *Registry) Watch(path types.RegistryPath, subtree bool) (Waiter, error) {
	k, err := openKey(path, registry.NOTIFY, "watch")
	if err != nil {
		return nil, err
	}
	change, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		k.Close()
		return nil, types.Errorf(types.ErrKindWait, types.ErrNativeWait, "watch %s: create event: %v", path, err)
	}
	cancel, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		windows.CloseHandle(change)
		k.Close()
		return nil, types.Errorf(types.ErrKindWait, types.ErrNativeWait, "watch %s: create event: %v", path, err)
	}
	return &regWaiter{path: path, key: k, subtree: subtree, change: change, cancel: cancel}, nil
}

type regWaiter struct {
	path    types.RegistryPath
	key     registry.Key
	subtree bool
	change  windows.Handle
	cancel  windows.Handle

	mu      sync.Mutex
	waiting bool
	closed  bool
	freed   bool
}

func (w *regWaiter) Wait() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return types.ErrWatchClosed
	}
	w.waiting = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.waiting = false
		if w.closed {
			w.freeLocked()
		}
		w.mu.Unlock()
	}()

	err := windows.RegNotifyChangeKeyValue(windows.Handle(w.key), w.subtree, notifyFilter, w.change, true)
	if err != nil {
		return types.Errorf(types.ErrKindWait, types.ErrNativeWait, "arm %s: %v", w.path, err)
	}

	ev, err := windows.WaitForMultipleObjects([]windows.Handle{w.change, w.cancel}, false, windows.INFINITE)
	if err != nil {
		return types.Errorf(types.ErrKindWait, types.ErrNativeWait, "wait %s: %v", w.path, err)
	}
	switch ev {
	case windows.WAIT_OBJECT_0:
		return nil
	case windows.WAIT_OBJECT_0 + 1:
		return types.ErrWatchClosed
	}
	return types.Errorf(types.ErrKindWait, types.ErrNativeWait, "wait %s: unexpected result %#x", w.path, ev)
}

// Close signals the cancel event. Handles are released here when no Wait
// is in flight, otherwise by the Wait on its way out.
func (w *regWaiter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := windows.SetEvent(w.cancel); err != nil {
		return fmt.Errorf("store: cancel watch %s: %w", w.path, err)
	}
	if !w.waiting {
		w.freeLocked()
	}
	return nil
}

func (w *regWaiter) freeLocked() {
	if w.freed {
		return
	}
	w.freed = true
	w.key.Close()
	windows.CloseHandle(w.change)
	windows.CloseHandle(w.cancel)
}
