package termcache

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend kinds accepted by NewBackend.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// NewBackend builds the configured backend. kv is required for BackendRedis only.
func NewBackend(kind, dir string, kv KVStore, logger *zap.Logger) (Backend, error) {
	switch kind {
	case "", BackendFile:
		return NewFileBackend(dir)
	case BackendRedis:
		if kv == nil {
			return nil, fmt.Errorf("redis cache backend requires a redis store")
		}
		return NewRedisBackend(kv), nil
	case BackendBadger:
		return OpenBadgerBackend(dir, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", kind)
	}
}
