package termcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// memBackend is an in-memory Backend that records calls.
type memBackend struct {
	mu        sync.Mutex
	entries   map[string]Entry
	loadErr   error
	putErr    error
	deleteErr error
	puts      int
	deleted   []string
}

func newMemBackend() *memBackend {
	return &memBackend{entries: make(map[string]Entry)}
}

func (m *memBackend) Load(_ context.Context) (map[string]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *memBackend) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[e.Key] = e
	return nil
}

func (m *memBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, keys...)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memBackend) Size(_ context.Context) (int64, error) { return int64(len(m.entries)), nil }
func (m *memBackend) Location() string                      { return "memory" }
func (m *memBackend) Close() error                          { return nil }

func (m *memBackend) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

// fakeKV implements KVStore over a map.
type fakeKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string][]byte)} }

func (f *fakeKV) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeKV) Scan(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var errBoom = errors.New("boom")

// newTestStore returns a store over b whose clock is controlled by the returned pointer.
func newTestStore(t *testing.T, b Backend) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(context.Background(), b, DefaultMaxAge, nil, zap.NewNop())
	s.now = func() time.Time { return now }
	return s, &now
}
