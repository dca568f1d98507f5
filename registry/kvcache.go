package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"
)

const (
	snapshotKey       = "trigger:registry:snapshot"
	invalidateChannel = "trigger:registry:invalidate"
)

// snapshotDoc is the KV wire form of a Snapshot.
type snapshotDoc struct {
	EventTriggers     []*EventTrigger     `json:"event_triggers"`
	ScheduledTriggers []*ScheduledTrigger `json:"scheduled_triggers"`
	CachedAt          time.Time           `json:"cached_at"`
}

func (d *snapshotDoc) snapshot() *Snapshot {
	return NewSnapshot(d.EventTriggers, d.ScheduledTriggers)
}

// KVCache caches registry snapshots in Grove KV (Redis) so that multiple
// engine replicas share configuration reads instead of each hitting the
// config tables every cycle. Invalidation is broadcast over a pub/sub
// channel.
type KVCache struct {
	kv     *kv.Store
	rdb    goredis.UniversalClient
	origin SnapshotProvider
	ttl    time.Duration
	logger *slog.Logger

	// In-process memo, cleared by pub/sub invalidation. Keeps the 1s event
	// cycle off Redis.
	mu       sync.RWMutex
	memo     *Snapshot
	memoAt   time.Time
	memoTTL  time.Duration
	watching sync.Once
}

// NewKVCache creates a snapshot cache over the given KV store and origin
// provider. ttl bounds how stale a shared snapshot may be before the origin
// is re-queried.
func NewKVCache(store *kv.Store, origin SnapshotProvider, ttl time.Duration, logger *slog.Logger) *KVCache {
	if logger == nil {
		logger = slog.Default()
	}
	memoTTL := 5 * time.Second
	if ttl > 0 && ttl < memoTTL {
		memoTTL = ttl
	}
	return &KVCache{
		kv:      store,
		rdb:     redisdriver.UnwrapClient(store),
		origin:  origin,
		ttl:     ttl,
		logger:  logger,
		memoTTL: memoTTL,
	}
}

// Provider returns a SnapshotProvider backed by the cache.
func (c *KVCache) Provider() SnapshotProvider {
	return c.snapshot
}

func (c *KVCache) snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	if c.memo != nil && time.Since(c.memoAt) < c.memoTTL {
		snap := c.memo
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	doc, err := c.readKV(ctx)
	if err == nil && (c.ttl <= 0 || time.Since(doc.CachedAt) < c.ttl) {
		snap := doc.snapshot()
		c.remember(snap)
		return snap, nil
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		// A degraded cache must not stall delivery; fall through to origin.
		c.logger.Warn("registry snapshot cache read failed", "error", err)
	}

	return c.Refresh(ctx)
}

// Refresh re-queries the origin provider, stores the result in KV, and
// returns the fresh snapshot.
func (c *KVCache) Refresh(ctx context.Context) (*Snapshot, error) {
	snap, err := c.origin(ctx)
	if err != nil {
		return nil, err
	}

	if writeErr := c.writeKV(ctx, snap); writeErr != nil {
		c.logger.Warn("registry snapshot cache write failed", "error", writeErr)
	}
	c.remember(snap)
	return snap, nil
}

// Invalidate refreshes the shared snapshot from the origin and broadcasts
// an invalidation so other replicas drop their in-process memos.
func (c *KVCache) Invalidate(ctx context.Context) error {
	if _, err := c.Refresh(ctx); err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, invalidateChannel, "1").Err(); err != nil {
		return fmt.Errorf("registry: publish invalidation: %w", err)
	}
	return nil
}

// Watch subscribes to the invalidation channel and clears the in-process
// memo when configuration changes elsewhere. It returns once the
// subscription is established; the watch loop runs until ctx is cancelled.
func (c *KVCache) Watch(ctx context.Context) {
	c.watching.Do(func() {
		sub := c.rdb.Subscribe(ctx, invalidateChannel)
		go func() {
			defer sub.Close()
			ch := sub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					c.mu.Lock()
					c.memo = nil
					c.mu.Unlock()
				}
			}
		}()
	})
}

func (c *KVCache) remember(snap *Snapshot) {
	c.mu.Lock()
	c.memo = snap
	c.memoAt = time.Now()
	c.mu.Unlock()
}

func (c *KVCache) readKV(ctx context.Context) (*snapshotDoc, error) {
	raw, err := c.kv.GetRaw(ctx, snapshotKey)
	if err != nil {
		return nil, err
	}
	var doc snapshotDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("registry: decode cached snapshot: %w", err)
	}
	return &doc, nil
}

func (c *KVCache) writeKV(ctx context.Context, snap *Snapshot) error {
	doc := snapshotDoc{
		EventTriggers:     make([]*EventTrigger, 0, len(snap.eventTriggers)),
		ScheduledTriggers: make([]*ScheduledTrigger, 0, len(snap.scheduledTriggers)),
		CachedAt:          time.Now().UTC(),
	}
	for _, et := range snap.eventTriggers {
		doc.EventTriggers = append(doc.EventTriggers, et)
	}
	for _, st := range snap.scheduledTriggers {
		doc.ScheduledTriggers = append(doc.ScheduledTriggers, st)
	}

	raw, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("registry: encode snapshot: %w", err)
	}
	return c.kv.SetRaw(ctx, snapshotKey, raw)
}
