package drift

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/regenforce/internal/metrics"
	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/store"
	"github.com/joshuapare/regenforce/pkg/types"
)

var appKey = types.MustResolvePath(`HKLM\Software\App`)

func newSet(t *testing.T, lines ...string) *policy.Set {
	t.Helper()
	doc := policy.ParseDocument("test.reg", lines)
	require.Empty(t, doc.Problems)
	return policy.NewSet(doc)
}

func countSet(t *testing.T) (*policy.Set, *policy.Entry) {
	t.Helper()
	set := newSet(t, `[HKLM\Software\App]`, `"Count"=dword:00000005`)
	return set, set.Entries()[0]
}

func TestEvaluate_Matched(t *testing.T) {
	set, e := countSet(t)
	m := store.NewMemStore()
	m.Put(appKey, "Count", types.DWord(5))

	r := NewDetector(m).Evaluate(set, e)
	assert.Equal(t, Matched, r.Status)
	require.NotNil(t, r.Observed)
	assert.True(t, types.Equal(types.DWord(5), *r.Observed))
	assert.False(t, r.Changed)
	assert.NoError(t, r.Err)
}

func TestEvaluate_DriftedThenEnforced(t *testing.T) {
	set, e := countSet(t)
	m := store.NewMemStore()
	m.Put(appKey, "Count", types.DWord(6))
	d := NewDetector(m)

	r := d.Evaluate(set, e)
	assert.Equal(t, Drifted, r.Status)

	require.NoError(t, NewEnforcer(m, nil).Apply(set, e))
	v, err := m.Get(appKey, "Count")
	require.NoError(t, err)
	assert.True(t, types.Equal(types.DWord(5), v))

	r = d.Evaluate(set, e)
	assert.Equal(t, Matched, r.Status)
	assert.False(t, r.Changed, "the enforced value was already recorded")
}

func TestEvaluate_MissingKey(t *testing.T) {
	set, e := countSet(t)
	m := store.NewMemStore()

	r := NewDetector(m).Evaluate(set, e)
	assert.Equal(t, Missing, r.Status)
	assert.Nil(t, r.Observed)
	assert.NoError(t, r.Err, "not-found is data")

	err := NewEnforcer(m, nil).Apply(set, e)
	require.ErrorIs(t, err, types.ErrKeyNotFound)
	assert.Equal(t, types.ErrKindNotFound, types.KindOf(err))
}

func TestEvaluate_TypeSensitive(t *testing.T) {
	set := newSet(t, `[HKLM\Software\App]`, `"Count"="5"`)
	m := store.NewMemStore()
	m.Put(appKey, "Count", types.DWord(5))

	r := NewDetector(m).Evaluate(set, set.Entries()[0])
	assert.Equal(t, Drifted, r.Status)
}

func TestEvaluate_UnmodelledType(t *testing.T) {
	set, e := countSet(t)
	m := store.NewMemStore()
	m.Put(appKey, "Count", types.Raw(types.REG_DWORD_BIG_ENDIAN, []byte{0, 0, 0, 5}))

	r := NewDetector(m).Evaluate(set, e)
	assert.Equal(t, Drifted, r.Status, "a value of another type exists")
	assert.NoError(t, r.Err)
	require.NotNil(t, r.Observed)
	assert.Equal(t, types.REG_DWORD_BIG_ENDIAN, r.Observed.Type)
}

func TestEvaluate_Idempotent(t *testing.T) {
	set, e := countSet(t)
	m := store.NewMemStore()
	m.Put(appKey, "Count", types.DWord(5))
	d := NewDetector(m)

	first := d.Evaluate(set, e)
	firstObs, seen := e.LastObserved()
	require.True(t, seen)

	second := d.Evaluate(set, e)
	secondObs, _ := e.LastObserved()

	assert.Equal(t, Matched, first.Status)
	assert.Equal(t, Matched, second.Status)
	assert.False(t, second.Changed)
	assert.True(t, types.EqualPtr(firstObs, secondObs))
	require.NotNil(t, secondObs)
	assert.True(t, types.Equal(types.DWord(5), *secondObs))
}

func TestEvaluate_Changed(t *testing.T) {
	set, e := countSet(t)
	m := store.NewMemStore()
	m.Put(appKey, "Count", types.DWord(6))
	d := NewDetector(m)

	assert.False(t, d.Evaluate(set, e).Changed, "first observation is never a change")
	assert.False(t, d.Evaluate(set, e).Changed)

	m.Put(appKey, "Count", types.DWord(7))
	r := d.Evaluate(set, e)
	assert.True(t, r.Changed)
	assert.Equal(t, Drifted, r.Status)

	m.Remove(appKey, "Count")
	r = d.Evaluate(set, e)
	assert.True(t, r.Changed, "present to absent is a change")
	assert.Equal(t, Missing, r.Status)
}

func TestEvaluate_RemoveEntry(t *testing.T) {
	set := newSet(t, `[HKLM\Software\App]`, `"Legacy"=-`)
	e := set.Entries()[0]
	m := store.NewMemStore()
	m.CreateKey(appKey)
	d := NewDetector(m)

	assert.Equal(t, Matched, d.Evaluate(set, e).Status)

	m.Put(appKey, "Legacy", types.String("on"))
	r := d.Evaluate(set, e)
	assert.Equal(t, Drifted, r.Status)
	assert.True(t, r.Changed)

	require.NoError(t, NewEnforcer(m, nil).Apply(set, e))
	_, err := m.Get(appKey, "Legacy")
	assert.ErrorIs(t, err, types.ErrValueMissing)
	assert.Equal(t, Matched, d.Evaluate(set, e).Status)
}

type failingStore struct {
	*store.MemStore
	err error
}

func (f failingStore) Get(types.RegistryPath, string) (types.Value, error) {
	return types.Value{}, f.err
}

func TestEvaluate_ReadError(t *testing.T) {
	set, e := countSet(t)
	boom := errors.New("rpc failed")
	r := NewDetector(failingStore{MemStore: store.NewMemStore(), err: boom}).Evaluate(set, e)
	assert.Equal(t, Missing, r.Status)
	assert.ErrorIs(t, r.Err, boom)

	_, seen := e.LastObserved()
	assert.False(t, seen, "an unreadable value is not an observation")
}

func TestEnforcer_Idempotent(t *testing.T) {
	set, e := countSet(t)
	m := store.NewMemStore()
	m.Put(appKey, "Count", types.DWord(1))
	f := NewEnforcer(m, nil)

	require.NoError(t, f.Apply(set, e))
	first, err := m.Get(appKey, "Count")
	require.NoError(t, err)
	require.NoError(t, f.Apply(set, e))
	second, err := m.Get(appKey, "Count")
	require.NoError(t, err)
	assert.True(t, types.Equal(first, second))
}

func TestEnforcer_WriteFaults(t *testing.T) {
	t.Run("denied", func(t *testing.T) {
		set, e := countSet(t)
		m := store.NewMemStore()
		m.Put(appKey, "Count", types.DWord(6))
		m.DenyWrites(appKey)
		err := NewEnforcer(m, nil).Apply(set, e)
		assert.ErrorIs(t, err, types.ErrWriteDenied)
	})

	t.Run("confirm read still drifted", func(t *testing.T) {
		set, e := countSet(t)
		m := store.NewMemStore()
		m.Put(appKey, "Count", types.DWord(6))
		m.DropWrites(appKey)
		err := NewEnforcer(m, nil).Apply(set, e)
		require.ErrorIs(t, err, types.ErrWriteDenied)
		assert.Equal(t, types.ErrKindDenied, types.KindOf(err))
		_, seen := e.LastObserved()
		assert.False(t, seen)
	})
}

func TestApplyAll(t *testing.T) {
	set := newSet(t,
		`[HKLM\Software\App]`,
		`"Ok"=dword:00000001`,
		`"Fix"=dword:00000002`,
		`[HKLM\Software\Absent]`,
		`"Lost"=dword:00000003`,
	)
	m := store.NewMemStore()
	m.Put(appKey, "Ok", types.DWord(1))
	m.Put(appKey, "Fix", types.DWord(9))
	mt := metrics.New(metrics.Config{Enabled: true})

	results := NewDetector(m).EvaluateAll(set)
	matched, drifted, missing := results.Counts()
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{matched, drifted, missing})
	assert.False(t, results.Clean())
	assert.Len(t, results.Drifted(), 2)

	outcomes := NewEnforcer(m, mt).ApplyAll(set, results)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "Fix", outcomes[0].Entry.Name)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "Lost", outcomes[1].Entry.Name)
	assert.ErrorIs(t, outcomes[1].Err, types.ErrKeyNotFound)

	n, err := testutil.GatherAndCount(mt.Registry(), "regenforce_enforcements_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per outcome")
	assert.True(t, NewDetector(m).EvaluateUnder(set, appKey).Clean())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "drifted", Drifted.String())
	text, err := Missing.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "missing", string(text))
	assert.Equal(t, "Status(9)", Status(9).String())
}
