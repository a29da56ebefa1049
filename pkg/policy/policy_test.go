package policy

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/regenforce/internal/regtext"
	"github.com/joshuapare/regenforce/pkg/types"
)

const sampleDoc = `Windows Registry Editor Version 5.00

[HKEY_CURRENT_USER\Software\Policies\Demo]
; feature switches
"Enabled"=dword:00000001
"Title"="Demo App"
@="default"
"Obsolete"=-

[HKEY_NOWHERE\Software\Bad]
"Ignored"="x"

[HKEY_CURRENT_USER\Software\Policies\Demo\Sub]
"Blob"=hex:01,zz
"Paths"=hex(7):61,00,00,00,00,00
garbage line
`

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestParseDocument(t *testing.T) {
	doc := ParseDocument("demo.reg", splitLines(sampleDoc))

	require.Len(t, doc.Entries, 5)
	enabled := doc.Entries[0]
	assert.Equal(t, "Enabled", enabled.Name)
	assert.Equal(t, `HKEY_CURRENT_USER\Software\Policies\Demo`, enabled.Key.String())
	assert.True(t, types.Equal(types.DWord(1), enabled.Expected))
	assert.Equal(t, "dword:00000001", enabled.Raw)
	assert.Equal(t, 5, enabled.Line)
	assert.Equal(t, "demo.reg", enabled.Source)

	assert.Equal(t, "", doc.Entries[2].Name)
	assert.Equal(t, "@", doc.Entries[2].DisplayName())
	assert.True(t, doc.Entries[3].Remove)
	assert.Equal(t, "Paths", doc.Entries[4].Name)
	assert.True(t, types.Equal(types.MultiString([]string{"a"}), doc.Entries[4].Expected))

	require.Len(t, doc.Problems, 3, "bad hive, malformed binary, unsplittable line")
	assert.ErrorIs(t, doc.Problems[0], types.ErrUnknownHive)
	assert.ErrorIs(t, doc.Problems[1], types.ErrMalformedBinary)
	assert.Equal(t, 16, doc.Problems[2].Line)
	assert.True(t, doc.Problems[0].Line < doc.Problems[1].Line)
}

func TestParseDocument_EscapedStringRoundTrip(t *testing.T) {
	want := types.String(`say "hi" to C:\`)
	doc := ParseDocument("p.reg", []string{
		`[HKLM\Software\App]`,
		`"Greeting"="` + regtext.Encode(want) + `"`,
	})
	require.Empty(t, doc.Problems)
	require.Len(t, doc.Entries, 1)
	assert.True(t, types.Equal(want, doc.Entries[0].Expected), "got %s", doc.Entries[0].Expected)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func TestLoadDir_OrderAndIsolation(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "b.reg", "[HKLM\\Software\\B]\n\"B\"=dword:00000002\n")
	writeDoc(t, dir, "a.REG", "[HKLM\\Software\\A]\n\"A\"=dword:00000001\n\"Broken\"=dword:zz\n")
	writeDoc(t, dir, "notes.txt", "[HKLM\\Software\\C]\n\"C\"=\"ignored\"\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.reg"), 0o755))

	set, err := LoadDir(dir, LoadOptions{})
	require.NoError(t, err)

	docs := set.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "a.REG", docs[0].Name)
	assert.Equal(t, "b.reg", docs[1].Name)

	entries := set.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Name)
	assert.Equal(t, "B", entries[1].Name)
	require.Len(t, set.Problems(), 1)
	assert.Equal(t, "a.REG", set.Problems()[0].Source)
}

func TestLoadDir_Missing(t *testing.T) {
	set, err := LoadDir(filepath.Join(t.TempDir(), "absent"), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestSet_KeyPathsAndUnder(t *testing.T) {
	doc := ParseDocument("x.reg", []string{
		`[HKLM\Software\App]`,
		`"A"="1"`,
		`[HKLM\Software\App\Child]`,
		`"B"="2"`,
		`[hklm\software\app]`,
		`"C"="3"`,
		`[HKCU\Software\App]`,
		`"D"="4"`,
	})
	set := NewSet(doc)

	paths := set.KeyPaths()
	require.Len(t, paths, 3)
	assert.Equal(t, `HKEY_LOCAL_MACHINE\Software\App`, paths[0].String())
	assert.Equal(t, `HKEY_LOCAL_MACHINE\Software\App\Child`, paths[1].String())
	assert.Equal(t, `HKEY_CURRENT_USER\Software\App`, paths[2].String())

	under := set.Under(paths[0])
	names := make([]string, len(under))
	for i, e := range under {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)
	assert.Len(t, set.Under(paths[1]), 1)
}

func TestEntry_ObserveAndSatisfied(t *testing.T) {
	e := &Entry{Expected: types.DWord(5)}
	five, six := types.DWord(5), types.DWord(6)

	_, seen := e.LastObserved()
	assert.False(t, seen)

	prev, seen := e.Observe(&six)
	assert.Nil(t, prev)
	assert.False(t, seen)

	prev, seen = e.Observe(&five)
	require.True(t, seen)
	assert.True(t, types.EqualPtr(&six, prev))

	assert.True(t, e.Satisfied(&five))
	assert.False(t, e.Satisfied(&six))
	assert.False(t, e.Satisfied(nil))

	rm := &Entry{Remove: true}
	assert.True(t, rm.Satisfied(nil))
	assert.False(t, rm.Satisfied(&five))
}

func TestHolder_Swap(t *testing.T) {
	first := NewSet()
	second := NewSet(Document{Name: "n"})
	h := NewHolder(first)
	assert.Same(t, first, h.Load())
	assert.Same(t, first, h.Swap(second))
	assert.Same(t, second, h.Load())
}

func TestReloader_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.reg", "[HKLM\\Software\\A]\n\"A\"=dword:00000001\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		sets []*Set
	)
	r := NewReloader(dir, LoadOptions{}, 20*time.Millisecond)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, func(s *Set) {
			mu.Lock()
			sets = append(sets, s)
			mu.Unlock()
		})
	}()

	// Give the watcher time to register before touching the folder.
	time.Sleep(100 * time.Millisecond)
	writeDoc(t, dir, "b.reg", "[HKLM\\Software\\B]\n\"B\"=dword:00000002\n")
	writeDoc(t, dir, "ignored.txt", "nothing")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sets) > 0 && sets[len(sets)-1].Len() == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reloader did not stop")
	}
}

func TestReloader_MissingDir(t *testing.T) {
	r := NewReloader(filepath.Join(t.TempDir(), "absent"), LoadOptions{}, 0)
	err := r.Run(context.Background(), func(*Set) {})
	assert.Error(t, err)
}
