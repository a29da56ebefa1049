package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/regenforce/pkg/types"
)

var (
	appKey   = types.MustResolvePath(`HKLM\Software\App`)
	childKey = types.MustResolvePath(`HKLM\Software\App\Child`)
	otherKey = types.MustResolvePath(`HKCU\Software\Other`)
)

func TestMemStore_GetSetDelete(t *testing.T) {
	m := NewMemStore()

	_, err := m.Get(appKey, "Level")
	require.ErrorIs(t, err, types.ErrKeyNotFound)
	assert.True(t, types.IsNotFound(err))

	require.ErrorIs(t, m.Set(appKey, "Level", types.DWord(1)), types.ErrKeyNotFound, "keys are never created by Set")

	m.CreateKey(appKey)
	_, err = m.Get(appKey, "Level")
	require.ErrorIs(t, err, types.ErrValueMissing)

	require.NoError(t, m.Set(appKey, "Level", types.DWord(3)))
	v, err := m.Get(types.MustResolvePath(`HKEY_LOCAL_MACHINE\SOFTWARE\app`), "level")
	require.NoError(t, err)
	assert.True(t, types.Equal(types.DWord(3), v), "lookups are case-insensitive")

	require.NoError(t, m.Delete(appKey, "Level"))
	require.NoError(t, m.Delete(appKey, "Level"), "deleting an absent value is fine")
	_, err = m.Get(appKey, "Level")
	assert.ErrorIs(t, err, types.ErrValueMissing)
}

func TestMemStore_WriteFaults(t *testing.T) {
	m := NewMemStore()
	m.CreateKey(appKey)
	m.CreateKey(otherKey)

	m.DenyWrites(appKey)
	err := m.Set(appKey, "X", types.String("x"))
	require.ErrorIs(t, err, types.ErrWriteDenied)
	assert.Equal(t, types.ErrKindDenied, types.KindOf(err))

	m.DropWrites(otherKey)
	require.NoError(t, m.Set(otherKey, "X", types.String("x")))
	_, err = m.Get(otherKey, "X")
	assert.ErrorIs(t, err, types.ErrValueMissing, "dropped writes leave the store untouched")
}

func waitResult(w Waiter) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- w.Wait() }()
	return ch
}

func TestMemStore_WatchSubtree(t *testing.T) {
	m := NewMemStore()
	m.CreateKey(appKey)
	m.CreateKey(childKey)

	w, err := m.Watch(appKey, true)
	require.NoError(t, err)
	defer w.Close()

	res := waitResult(w)
	m.Put(otherKey, "Unrelated", types.String("x"))
	select {
	case <-res:
		t.Fatal("woke for a key outside the subtree")
	case <-time.After(50 * time.Millisecond):
	}

	m.Put(childKey, "Deep", types.String("x"))
	select {
	case err := <-res:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("no wakeup for a change below the watched key")
	}
}

func TestMemStore_WatchExactKey(t *testing.T) {
	m := NewMemStore()
	m.CreateKey(appKey)
	m.CreateKey(childKey)

	w, err := m.Watch(appKey, false)
	require.NoError(t, err)
	defer w.Close()

	res := waitResult(w)
	m.Put(childKey, "Deep", types.String("x"))
	select {
	case <-res:
		t.Fatal("non-subtree watch woke for a child")
	case <-time.After(50 * time.Millisecond):
	}
	m.Put(appKey, "Top", types.String("x"))
	require.NoError(t, <-res)
}

func TestMemStore_WatchCloseInterrupts(t *testing.T) {
	m := NewMemStore()
	m.CreateKey(appKey)

	w, err := m.Watch(appKey, true)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Watchers())

	res := waitResult(w)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	select {
	case err := <-res:
		assert.ErrorIs(t, err, types.ErrWatchClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not interrupt Wait")
	}
	assert.Equal(t, 0, m.Watchers())
	assert.ErrorIs(t, w.Wait(), types.ErrWatchClosed)
}

func TestMemStore_WatchFaults(t *testing.T) {
	m := NewMemStore()

	_, err := m.Watch(appKey, true)
	require.ErrorIs(t, err, types.ErrKeyNotFound)

	m.CreateKey(appKey)
	w, err := m.Watch(appKey, true)
	require.NoError(t, err)
	defer w.Close()

	res := waitResult(w)
	m.FailNextWait(appKey, errors.New("handle revoked"))
	err = <-res
	require.ErrorIs(t, err, types.ErrNativeWait)
	assert.Equal(t, types.ErrKindWait, types.KindOf(err))
}

const export = "Windows Registry Editor Version 5.00\r\n" +
	"\r\n" +
	"[HKEY_LOCAL_MACHINE\\Software\\App]\r\n" +
	"\"Level\"=dword:00000003\r\n" +
	"@=\"root\"\r\n" +
	"\"Gone\"=-\r\n" +
	"\"Bad\"=hex:zz\r\n" +
	"\r\n" +
	"[HKEY_LOCAL_MACHINE\\Software\\App\\Child]\r\n" +
	"\r\n" +
	"[-HKEY_LOCAL_MACHINE\\Software\\Removed]\r\n"

func TestLoadSnapshot(t *testing.T) {
	m, err := LoadSnapshot(strings.NewReader(export), "")
	require.NoError(t, err)

	v, err := m.Get(appKey, "Level")
	require.NoError(t, err)
	assert.True(t, types.Equal(types.DWord(3), v))

	v, err = m.Get(appKey, "")
	require.NoError(t, err)
	assert.Equal(t, "root", v.Str())

	_, err = m.Get(appKey, "Gone")
	assert.ErrorIs(t, err, types.ErrValueMissing)
	_, err = m.Get(appKey, "Bad")
	assert.ErrorIs(t, err, types.ErrValueMissing)

	require.NoError(t, m.Set(childKey, "New", types.String("x")), "empty sections still exist")
	_, err = m.Get(types.MustResolvePath(`HKLM\Software\Removed`), "x")
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
}
