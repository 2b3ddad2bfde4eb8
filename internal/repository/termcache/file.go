package termcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFileName is the cache file created inside the cache directory.
const DefaultFileName = "keyword_cache.json"

// FileBackend keeps every entry in a single JSON object file keyed by cache
// key. The file is rewritten on each mutation.
type FileBackend struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	skipped int
}

// NewFileBackend creates the cache directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		dir = "cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileBackend{
		path:    filepath.Join(dir, DefaultFileName),
		entries: make(map[string]Entry),
	}, nil
}

// Load reads the cache file. A missing file is an empty cache. Entries that
// do not decode are skipped and dropped from the file on the next write; only
// a file that is not a JSON object is an error.
func (b *FileBackend) Load(_ context.Context) (map[string]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.skipped = 0
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			b.entries = make(map[string]Entry)
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		b.entries = make(map[string]Entry)
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}

	entries := make(map[string]Entry, len(raw))
	for k, v := range raw {
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			b.skipped++
			continue
		}
		if e.Key == "" {
			e.Key = k
		}
		entries[k] = e
	}
	b.entries = entries

	out := make(map[string]Entry, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out, nil
}

// Skipped returns how many entries the last Load could not decode.
func (b *FileBackend) Skipped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.skipped
}

// Put adds or replaces an entry and rewrites the file.
func (b *FileBackend) Put(_ context.Context, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[e.Key] = e
	return b.flush()
}

// Delete removes entries and rewrites the file.
func (b *FileBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, k := range keys {
		delete(b.entries, k)
	}
	return b.flush()
}

// Size returns the cache file size.
func (b *FileBackend) Size(_ context.Context) (int64, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat %s: %w", b.path, err)
	}
	return info.Size(), nil
}

// Location returns the cache file path.
func (b *FileBackend) Location() string { return b.path }

// Close is a no-op; every mutation is already on disk.
func (b *FileBackend) Close() error { return nil }

// flush writes to a temp file and renames it over the cache file so readers
// never observe a partial write.
func (b *FileBackend) flush() error {
	data, err := marshalEntries(b.entries)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".keyword_cache-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}

func marshalEntries(entries map[string]Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("encode cache: %w", err)
	}
	return buf.Bytes(), nil
}
