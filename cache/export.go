package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SnapshotVersion is written into every snapshot and checked on import.
// Version 1.0 snapshots carried no insertion times and are rejected.
const SnapshotVersion = "2.0"

// ExportFormat is the on-disk snapshot of a cache.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry is one cached translation.
type ExportEntry struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	InsertedAt time.Time `json:"inserted_at"`
}

// EnumerableCache is a cache that can list its live entries.
type EnumerableCache interface {
	TranslationCache
	Entries() map[string]Entry
}

// Exporter writes snapshots so a warm cache survives a restart.
type Exporter struct {
	cache TranslationCache
	now   func() time.Time
}

func NewExporter(cache TranslationCache) *Exporter {
	return &Exporter{cache: cache, now: time.Now}
}

// Export writes the live entries of the cache, sorted by key, as indented JSON.
func (e *Exporter) Export(w io.Writer, metadata map[string]string) error {
	src, ok := e.cache.(EnumerableCache)
	if !ok {
		return fmt.Errorf("cache type %T does not support export", e.cache)
	}

	live := src.Entries()
	snap := ExportFormat{
		Version:    SnapshotVersion,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
		Entries:    make([]ExportEntry, 0, len(live)),
		Metadata:   metadata,
	}
	for k, v := range live {
		snap.Entries = append(snap.Entries, ExportEntry{
			Key:        k,
			Value:      v.Value,
			InsertedAt: v.InsertedAt.UTC(),
		})
	}
	sort.Slice(snap.Entries, func(i, j int) bool { return snap.Entries[i].Key < snap.Entries[j].Key })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// ExportToFile writes the snapshot next to path and renames it into place,
// so an interrupted export never truncates the previous snapshot.
func (e *Exporter) ExportToFile(path string, metadata map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := e.Export(tmp, metadata); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Importer loads snapshots into a cache.
type Importer struct {
	cache TranslationCache
}

// NewImporter returns an importer for cache. Import fails unless the cache
// implements RestorableCache.
func NewImporter(cache TranslationCache) *Importer {
	return &Importer{cache: cache}
}

// ImportResult reports what an import did.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
	Skipped  int // entries with an empty key or value
	Expired  int // entries already past the TTL of the target cache
	Failed   int // entries the cache refused
}

// Import loads every entry of a snapshot under its original insertion time,
// so an entry expires when it would have in the exporting cache.
func (i *Importer) Import(r io.Reader) (*ImportResult, error) {
	dst, ok := i.cache.(RestorableCache)
	if !ok {
		return nil, fmt.Errorf("cache type %T does not support import", i.cache)
	}

	var snap ExportFormat
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q", snap.Version)
	}

	res := &ImportResult{Version: snap.Version, Metadata: snap.Metadata}
	for _, entry := range snap.Entries {
		if entry.Key == "" || entry.Value == "" {
			res.Skipped++
			continue
		}
		err := dst.SetAt(entry.Key, entry.Value, entry.InsertedAt)
		switch {
		case errors.Is(err, ErrEntryExpired):
			res.Expired++
		case err != nil:
			res.Failed++
		default:
			res.Imported++
		}
	}
	return res, nil
}

// ImportFromFile imports the snapshot at path.
func (i *Importer) ImportFromFile(path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return i.Import(f)
}
