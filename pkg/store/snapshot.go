package store

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joshuapare/regenforce/internal/logger"
	"github.com/joshuapare/regenforce/internal/regtext"
	"github.com/joshuapare/regenforce/pkg/types"
)

// LoadSnapshot builds a MemStore from a regedit export. Every section
// becomes a key, including empty ones, so writes against them succeed the
// way they would on the machine the export came from. Sections marked for
// deletion ("[-KEY]"), delete records and lines that do not decode are
// skipped and logged.
func LoadSnapshot(r io.Reader, enc string) (*MemStore, error) {
	lines, err := regtext.ReadLines(r, enc)
	if err != nil {
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}

	log := logger.Component("snapshot")
	m := NewMemStore()

	for _, section := range regtext.Sections(lines) {
		if strings.HasPrefix(section, regtext.DeleteValueToken) {
			continue
		}
		path, err := types.ResolvePath(section)
		if err != nil {
			log.Warn().Str("key", section).Err(err).Msg("Skipping snapshot key")
			continue
		}
		m.CreateKey(path)
	}

	records, lineErrs := regtext.ParseLines(lines)
	for _, le := range lineErrs {
		log.Warn().Int("line", le.Line).Err(le).Msg("Skipping snapshot line")
	}
	for _, rec := range records {
		if rec.IsDelete() {
			continue
		}
		path, err := types.ResolvePath(rec.Key)
		if err != nil {
			continue
		}
		v, err := regtext.Decode(rec.Data)
		if err != nil {
			log.Warn().Int("line", rec.Line).Err(err).Msg("Skipping snapshot value")
			continue
		}
		m.Put(path, rec.Name, v)
	}

	log.Debug().Int("keys", len(m.keys)).Msg("Snapshot loaded")
	return m, nil
}

// LoadSnapshotFile opens path and calls LoadSnapshot.
func LoadSnapshotFile(path, enc string) (*MemStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open snapshot: %w", err)
	}
	defer f.Close()
	return LoadSnapshot(f, enc)
}
