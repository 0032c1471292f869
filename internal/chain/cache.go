package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"wordlechain/internal/metrics"
)

// ReadCache holds recent contract read results. Entries are snapshots:
// callers refetch by invalidating keys, never by subscribing. A nil
// *ReadCache disables caching.
type ReadCache struct {
	cache   *bigcache.BigCache
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewReadCache returns nil, nil when ttl is zero.
func NewReadCache(ctx context.Context, ttl time.Duration, log *zap.SugaredLogger, m *metrics.Metrics) (*ReadCache, error) {
	if ttl <= 0 {
		return nil, nil
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 16
	cfg.CleanWindow = time.Second
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 1024
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create read cache: %w", err)
	}
	return &ReadCache{cache: cache, log: log, metrics: m}, nil
}

// Invalidate drops the given keys so the next read goes to the chain.
func (r *ReadCache) Invalidate(keys ...string) {
	if r == nil {
		return
	}
	for _, key := range keys {
		if err := r.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			r.log.Warnw("read cache delete failed", "key", key, "err", err)
		}
	}
}

// Reset drops every entry.
func (r *ReadCache) Reset() {
	if r == nil {
		return
	}
	if err := r.cache.Reset(); err != nil {
		r.log.Warnw("read cache reset failed", "err", err)
	}
}

func (r *ReadCache) Close() error {
	if r == nil {
		return nil
	}
	return r.cache.Close()
}

func (r *ReadCache) get(key string, v any) bool {
	if r == nil {
		return false
	}
	data, err := r.cache.Get(key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		r.log.Warnw("read cache entry unreadable, dropping", "key", key, "err", err)
		_ = r.cache.Delete(key)
		return false
	}
	return true
}

func (r *ReadCache) set(key string, v any) {
	if r == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.log.Warnw("read cache encode failed", "key", key, "err", err)
		return
	}
	if err := r.cache.Set(key, data); err != nil {
		r.log.Warnw("read cache set failed", "key", key, "err", err)
	}
}

// Cached returns the cached value for key or loads and stores it. method
// labels the read in metrics.
func Cached[T any](ctx context.Context, r *ReadCache, key, method string, load func(context.Context) (T, error)) (T, error) {
	var v T
	if r.get(key, &v) {
		if r != nil {
			r.metrics.Read(method, "cache")
		}
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if r != nil {
		r.metrics.Read(method, "chain")
	}
	r.set(key, v)
	return v, nil
}
