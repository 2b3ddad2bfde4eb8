package termcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

var badgerKeyPrefix = []byte("termcache:")

// badgerLogger adapts zap to the badger.Logger interface.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any)   { l.sugar.Errorf(msg, args...) }
func (l *badgerLogger) Warningf(msg string, args ...any) { l.sugar.Warnf(msg, args...) }
func (l *badgerLogger) Infof(msg string, args ...any)    { l.sugar.Debugf(msg, args...) }
func (l *badgerLogger) Debugf(msg string, args ...any)   { l.sugar.Debugf(msg, args...) }

// BadgerBackend stores entries in an embedded Badger database.
type BadgerBackend struct {
	db   *badger.DB
	path string
}

// OpenBadgerBackend opens (or creates) a Badger database in dir.
// An empty dir opens an in-memory database.
func OpenBadgerBackend(dir string, logger *zap.Logger) (*BadgerBackend, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{sugar: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerBackend{db: bdb, path: dir}, nil
}

// Load iterates every entry under the cache prefix.
func (b *BadgerBackend) Load(_ context.Context) (map[string]Entry, error) {
	out := make(map[string]Entry)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: badgerKeyPrefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var e Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				continue
			}
			if e.Key == "" {
				e.Key = string(item.Key()[len(badgerKeyPrefix):])
			}
			out[e.Key] = e
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate badger: %w", err)
	}
	return out, nil
}

// Put writes an entry.
func (b *BadgerBackend) Put(_ context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(e.Key), data)
	})
}

// Delete removes entries in a single transaction.
func (b *BadgerBackend) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(badgerKey(k)); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// Size returns the LSM plus value log size.
func (b *BadgerBackend) Size(_ context.Context) (int64, error) {
	lsm, vlog := b.db.Size()
	return lsm + vlog, nil
}

// Location returns the database directory.
func (b *BadgerBackend) Location() string {
	if b.path == "" {
		return "badger://memory"
	}
	return "badger://" + b.path
}

// Close closes the database.
func (b *BadgerBackend) Close() error { return b.db.Close() }

func badgerKey(k string) []byte {
	out := make([]byte, 0, len(badgerKeyPrefix)+len(k))
	out = append(out, badgerKeyPrefix...)
	return append(out, k...)
}
