package termcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultMaxAge is how long an entry stays valid.
const DefaultMaxAge = 30 * 24 * time.Hour

// Backend persists cache entries.
type Backend interface {
	Load(ctx context.Context) (map[string]Entry, error)
	Put(ctx context.Context, e Entry) error
	Delete(ctx context.Context, keys ...string) error
	// Size reports the persisted size in bytes, or -1 when unknown.
	Size(ctx context.Context) (int64, error)
	Location() string
	Close() error
}

// Store is a keyed, timestamped cache for extraction and enrichment results.
// Entries live in memory and are written through to the backend on every
// mutation. Persistence failures are logged and never returned.
type Store struct {
	mu         sync.Mutex
	backend    Backend
	entries    map[string]Entry
	maxAge     time.Duration
	now        func() time.Time
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New loads the backend contents and returns a ready store.
// cacheTotal is a counter vec with labels "tag" and "result", passed explicitly.
// A failed load starts an empty cache.
func New(
	ctx context.Context,
	backend Backend,
	maxAge time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Store {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	s := &Store{
		backend:    backend,
		maxAge:     maxAge,
		now:        time.Now,
		cacheTotal: cacheTotal,
		logger:     logger,
	}

	entries, err := backend.Load(ctx)
	if err != nil {
		logger.Warn("Failed to load term cache, starting empty",
			zap.String("location", backend.Location()), zap.Error(err))
		entries = nil
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}
	if sk, ok := backend.(interface{ Skipped() int }); ok && sk.Skipped() > 0 {
		logger.Warn("Skipped undecodable term cache entries",
			zap.String("location", backend.Location()), zap.Int("skipped", sk.Skipped()))
	}
	s.entries = entries

	logger.Info("Term cache loaded",
		zap.String("location", backend.Location()),
		zap.Int("entries", len(entries)),
	)
	return s
}

// Get returns the cached payload for text under tag. Expired entries are
// removed on the read that finds them.
func (s *Store) Get(ctx context.Context, text string, tag Tag) (json.RawMessage, bool) {
	key := Key(text, tag)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.inc(tag, "miss")
		return nil, false
	}
	if e.expired(s.now(), s.maxAge) {
		delete(s.entries, key)
		s.deleteFromBackend(ctx, key)
		s.inc(tag, "expired")
		return nil, false
	}

	s.inc(tag, "hit")
	out := make(json.RawMessage, len(e.Result))
	copy(out, e.Result)
	return out, true
}

// Set stores payload for text under tag, replacing any previous value.
func (s *Store) Set(ctx context.Context, text string, tag Tag, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("Failed to encode cache payload", zap.String("tag", string(tag)), zap.Error(err))
		return
	}
	e := Entry{
		Timestamp: s.now(),
		Key:       Key(text, tag),
		CacheType: tag,
		Result:    data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.Key] = e
	if err := s.backend.Put(ctx, e); err != nil {
		s.logger.Warn("Failed to persist cache entry", zap.String("key", e.Key), zap.Error(err))
	}
}

// Clear removes entries of tag, or every entry when tag is empty.
// It returns the number of entries removed.
func (s *Store) Clear(ctx context.Context, tag Tag) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for k, e := range s.entries {
		if tag == "" || e.tag() == tag {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.deleteFromBackend(ctx, keys...)

	s.logger.Info("Term cache cleared", zap.String("tag", string(tag)), zap.Int("removed", len(keys)))
	return len(keys)
}

// Cleanup removes every expired entry and returns how many were removed.
func (s *Store) Cleanup(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []string
	for k, e := range s.entries {
		if e.expired(now, s.maxAge) {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.deleteFromBackend(ctx, keys...)

	s.logger.Info("Term cache cleanup", zap.Int("removed", len(keys)))
	return len(keys)
}

// Stats summarizes cache contents.
type Stats struct {
	TotalEntries      int   `json:"total_entries"`
	ValidEntries      int   `json:"valid_entries"`
	ExpiredEntries    int   `json:"expired_entries"`
	ExtractionEntries int   `json:"extraction_entries"`
	EnrichmentEntries int   `json:"enrichment_entries"`
	SizeBytes         int64 `json:"size_bytes"`
}

// Info is Stats plus entry age bounds and backend location.
type Info struct {
	Stats
	Oldest     *time.Time    `json:"oldest_entry,omitempty"`
	Newest     *time.Time    `json:"newest_entry,omitempty"`
	Location   string        `json:"location"`
	MaxAge     time.Duration `json:"-"`
	MaxAgeDays int           `json:"max_age_days"`
}

// Stats counts entries without evicting anything.
func (s *Store) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked(ctx)
}

func (s *Store) statsLocked(ctx context.Context) Stats {
	now := s.now()
	st := Stats{TotalEntries: len(s.entries)}
	for _, e := range s.entries {
		if e.expired(now, s.maxAge) {
			st.ExpiredEntries++
		} else {
			st.ValidEntries++
		}
		switch e.tag() {
		case TagExtraction:
			st.ExtractionEntries++
		case TagEnrichment:
			st.EnrichmentEntries++
		}
	}
	size, err := s.backend.Size(ctx)
	if err != nil {
		s.logger.Warn("Failed to read cache size", zap.Error(err))
		size = -1
	}
	st.SizeBytes = size
	return st
}

// Info reports stats together with the oldest and newest entry timestamps.
func (s *Store) Info(ctx context.Context) Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		Stats:      s.statsLocked(ctx),
		Location:   s.backend.Location(),
		MaxAge:     s.maxAge,
		MaxAgeDays: int(s.maxAge / (24 * time.Hour)),
	}
	for _, e := range s.entries {
		ts := e.Timestamp
		if info.Oldest == nil || ts.Before(*info.Oldest) {
			info.Oldest = &ts
		}
		if info.Newest == nil || ts.After(*info.Newest) {
			info.Newest = &ts
		}
	}
	return info
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) deleteFromBackend(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.backend.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Failed to delete cache entries", zap.Int("count", len(keys)), zap.Error(err))
	}
}

func (s *Store) inc(tag Tag, result string) {
	if s.cacheTotal != nil {
		s.cacheTotal.WithLabelValues(string(tag), result).Inc()
	}
}
