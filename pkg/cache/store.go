// Package cache keeps recently computed aggregate views for a short TTL.
// The aggregation engine itself stays stateless; this package wraps its
// read API and is invalidated whenever an ingestion run commits records.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/logger"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache closed")

// Store is a byte-value cache with per-entry TTL. Keys are namespaced by
// the store's prefix; Clear removes every key under that prefix.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
	Close() error
}

// Open returns a Redis store when an address is configured, otherwise an
// in-process store.
func Open(cfg config.CacheConfig, log *logger.Logger) (Store, error) {
	if cfg.RedisAddr == "" {
		return NewMemoryStore(cfg.Prefix), nil
	}
	return NewRedisStore(cfg.RedisAddr, cfg.Prefix, log)
}
