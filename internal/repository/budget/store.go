package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/trialmatch/internal/db"
	domainbudget "github.com/kailas-cloud/trialmatch/internal/domain/usage/budget"
)

type counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps per-provider token spend in Redis counters named by
// domainbudget.CounterKey. Each counter expires some time after its window
// closes, so old days and months clean themselves up.
type Store struct {
	kv  counters
	ttl map[domainbudget.Window]time.Duration
}

// New creates a Store. daily and monthly must outlive one day and one month.
func New(kv counters, daily, monthly time.Duration) *Store {
	return &Store{
		kv: kv,
		ttl: map[domainbudget.Window]time.Duration{
			domainbudget.Daily:   daily,
			domainbudget.Monthly: monthly,
		},
	}
}

// IncrBy adds tokens to a counter. Keys outside the counter layout are
// rejected before anything is written.
func (s *Store) IncrBy(ctx context.Context, key string, tokens int64) error {
	w, err := domainbudget.WindowOf(key)
	if err != nil {
		return fmt.Errorf("budget counter: %w", err)
	}
	if err := s.kv.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget counter %s: %w", key, err)
	}
	// NX keeps the expiry set by the first write of the window.
	if err := s.kv.Expire(ctx, key, s.ttl[w], true); err != nil {
		return fmt.Errorf("budget counter %s expiry: %w", key, err)
	}
	return nil
}

// Get reads a counter. A counter that was never written holds 0.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	raw, err := s.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("budget counter %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget counter %s holds %q: %w", key, raw, err)
	}
	return n, nil
}
