package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_RejectsUnknownOptions(t *testing.T) {
	t.Cleanup(func() { Set(zerolog.Nop()) })

	assert.Error(t, Init(Options{Output: "printer"}))
	assert.Error(t, Init(Options{Format: "xml"}))
	assert.Error(t, Init(Options{Level: "loud"}))
	require.NoError(t, Init(Options{Level: "debug", Format: FormatJSON}))
	assert.Equal(t, zerolog.DebugLevel, L().GetLevel())
}

func TestInit_FileOutput(t *testing.T) {
	t.Cleanup(func() { Set(zerolog.Nop()) })
	dir := t.TempDir()

	require.NoError(t, Init(Options{Output: OutputFile, LogDir: dir, Format: FormatJSON}))
	l := Component("test")
	l.Info().Msg("hello")

	name := filepath.Join(dir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestComponent_TagsOutput(t *testing.T) {
	t.Cleanup(func() { Set(zerolog.Nop()) })
	var buf bytes.Buffer
	Set(zerolog.New(&buf))

	l := Component("watch")
	l.Warn().Str("path", `HKLM\Software`).Msg("listener stopped")
	assert.Contains(t, buf.String(), `"component":"watch"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	old := filepath.Join(dir, logPrefix+"2024-01-01"+logSuffix)
	fresh := filepath.Join(dir, logPrefix+"2024-02-25"+logSuffix)
	other := filepath.Join(dir, "unrelated.log")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	cleanOldLogs(dir, now)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}
