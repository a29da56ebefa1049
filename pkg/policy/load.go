package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joshuapare/regenforce/internal/logger"
	"github.com/joshuapare/regenforce/internal/regtext"
	"github.com/joshuapare/regenforce/pkg/types"
)

// DocumentExt is the extension of desired-state documents in a policy folder.
const DocumentExt = ".reg"

// LoadOptions controls how documents are read.
type LoadOptions struct {
	// Encoding is the fallback text encoding for documents without a BOM.
	// Empty means UTF-8.
	Encoding string
}

// ParseDocument builds a Document from raw lines. Lines whose key path or
// payload cannot be resolved become Problems; the rest become Entries in
// line order.
func ParseDocument(name string, lines []string) Document {
	doc := Document{Name: name}
	records, lineErrs := regtext.ParseLines(lines)

	for _, le := range lineErrs {
		doc.Problems = append(doc.Problems, Problem{Source: name, Line: le.Line, Text: le.Text, Err: le})
	}

	// Key paths repeat across records; resolve each section once.
	resolved := make(map[string]types.RegistryPath)
	failed := make(map[string]error)

	for _, rec := range records {
		key, ok := resolved[rec.Key]
		if !ok {
			if err, bad := failed[rec.Key]; bad {
				doc.Problems = append(doc.Problems, Problem{Source: name, Line: rec.Line, Text: rec.Key, Err: err})
				continue
			}
			var err error
			key, err = types.ResolvePath(rec.Key)
			if err != nil {
				failed[rec.Key] = err
				doc.Problems = append(doc.Problems, Problem{Source: name, Line: rec.Line, Text: rec.Key, Err: err})
				continue
			}
			resolved[rec.Key] = key
		}

		entry := &Entry{
			Key:    key,
			Name:   rec.Name,
			Raw:    rec.Data,
			Source: name,
			Line:   rec.Line,
		}
		if rec.IsDelete() {
			entry.Remove = true
		} else {
			v, err := regtext.Decode(rec.Data)
			if err != nil {
				doc.Problems = append(doc.Problems, Problem{Source: name, Line: rec.Line, Text: rec.Data, Err: err})
				continue
			}
			entry.Expected = v
		}
		doc.Entries = append(doc.Entries, entry)
	}

	// Problems from the two passes interleave; report them in line order.
	sort.SliceStable(doc.Problems, func(i, j int) bool {
		return doc.Problems[i].Line < doc.Problems[j].Line
	})
	return doc
}

// LoadFile reads and parses one document.
func LoadFile(path string, opts LoadOptions) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("policy: open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := regtext.ReadLines(f, opts.Encoding)
	if err != nil {
		return Document{}, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return ParseDocument(filepath.Base(path), lines), nil
}

// LoadFiles parses the given documents, in the given order, into one Set.
func LoadFiles(paths []string, opts LoadOptions) (*Set, error) {
	log := logger.Component("policy")
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		doc, err := LoadFile(p, opts)
		if err != nil {
			return nil, err
		}
		for _, prob := range doc.Problems {
			log.Warn().Str("source", prob.Source).Int("line", prob.Line).Err(prob.Err).Msg("Skipping policy line")
		}
		docs = append(docs, doc)
	}
	set := NewSet(docs...)
	log.Debug().Int("documents", len(docs)).Int("entries", set.Len()).Msg("Policy loaded")
	return set, nil
}

// LoadDir loads every document in dir, ordered by file name. A missing
// folder yields an empty Set, like a folder with no documents.
func LoadDir(dir string, opts LoadOptions) (*Set, error) {
	paths, err := DocumentPaths(dir)
	if err != nil {
		return nil, err
	}
	return LoadFiles(paths, opts)
}

// DocumentPaths lists the documents in dir, sorted by name.
func DocumentPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("policy: list %s: %w", dir, err)
	}
	var paths []string
	for _, de := range entries {
		if de.IsDir() || !IsDocument(de.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, de.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// IsDocument reports whether name carries the document extension.
func IsDocument(name string) bool {
	return strings.EqualFold(filepath.Ext(name), DocumentExt)
}
