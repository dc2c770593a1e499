// Package cache mirrors the latest glucose reading into Redis so
// companion apps (the child's avatar screen) can poll it without
// talking to Nightscout themselves.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/punkyapp/diabetes-cockpit/internal/bus"
	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

const (
	currentEntryKey = "cockpit:current_entry"
	// Readings older than this are stale for display anyway.
	currentEntryTTL = 15 * time.Minute
)

// cachedEntry is the JSON shape stored in Redis.
type cachedEntry struct {
	Timestamp time.Time `json:"timestamp"`
	SGV       *float64  `json:"sgv"`
	Trend     string    `json:"trend"`
}

// CurrentReadingCache keeps the newest reading in Redis, fed from the
// event bus.
type CurrentReadingCache struct {
	client *redis.Client
	logger *slog.Logger
	sub    *bus.Subscription
}

// NewCurrentReadingCache connects to Redis and verifies the connection.
func NewCurrentReadingCache(host, port string, logger *slog.Logger) (*CurrentReadingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CurrentReadingCache{client: client, logger: logger}, nil
}

// Attach subscribes the cache to EntryAppended events. Writes are
// best-effort; a Redis outage never disturbs the cockpit.
func (c *CurrentReadingCache) Attach(b *bus.Bus) {
	c.sub = b.Subscribe(bus.KindEntryAppended, func(event bus.Event) {
		appended, ok := event.(bus.EntryAppended)
		if !ok {
			return
		}
		if err := c.Set(context.Background(), appended.Entry); err != nil {
			c.logger.Warn("failed to cache current reading", "error", err)
		}
	})
}

// Detach unsubscribes from the bus.
func (c *CurrentReadingCache) Detach() {
	c.sub.Cancel()
}

// Set stores the reading under the shared key with a staleness TTL.
func (c *CurrentReadingCache) Set(ctx context.Context, entry domain.GlucoseEntry) error {
	payload, err := json.Marshal(cachedEntry{
		Timestamp: entry.Timestamp,
		SGV:       entry.SGV,
		Trend:     entry.Trend.String(),
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, currentEntryKey, payload, currentEntryTTL).Err()
}

// Get returns the cached reading, or nil when none is cached or the
// TTL expired.
func (c *CurrentReadingCache) Get(ctx context.Context) (*domain.GlucoseEntry, error) {
	result := c.client.Get(ctx, currentEntryKey)
	if result.Err() == redis.Nil {
		return nil, nil
	}
	if result.Err() != nil {
		return nil, result.Err()
	}

	var cached cachedEntry
	if err := json.Unmarshal([]byte(result.Val()), &cached); err != nil {
		return nil, err
	}
	return &domain.GlucoseEntry{
		Timestamp: cached.Timestamp,
		SGV:       cached.SGV,
	}, nil
}

// Close closes the Redis connection.
func (c *CurrentReadingCache) Close() error {
	return c.client.Close()
}
