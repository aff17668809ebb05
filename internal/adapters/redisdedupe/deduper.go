// Package redisdedupe keeps seen activity keys in a Redis sorted set so that
// every service instance shares one idempotency record.
package redisdedupe

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/pkg/logger"
)

const (
	defaultSetKey = "stride||seen-activities"
	sizeTimeout   = 2 * time.Second
)

// Deduper is a dedupe.Deduper backed by a Redis sorted set scored by insert
// time. Once the set holds more than maxSize members the oldest are trimmed.
//
// A Redis failure is treated as "not seen": the gateway upserts activities by
// id, so a replay that slips through is stored once anyway.
type Deduper struct {
	client  *redis.Client
	setKey  string
	maxSize int64
	now     func() time.Time
	log     logger.Logger
}

var _ dedupe.Deduper = (*Deduper)(nil)

// Option applies a configuration option to the Deduper.
type Option func(*Deduper)

// WithSetKey names the Redis set holding the keys.
func WithSetKey(key string) Option {
	return func(d *Deduper) {
		if key != "" {
			d.setKey = key
		}
	}
}

// WithMaxSize bounds the number of remembered keys. n <= 0 means unbounded.
func WithMaxSize(n int) Option {
	return func(d *Deduper) {
		d.maxSize = int64(n)
	}
}

// WithClock sets the clock that scores new keys.
func WithClock(now func() time.Time) Option {
	return func(d *Deduper) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the logger used to report Redis failures.
func WithLogger(l logger.Logger) Option {
	return func(d *Deduper) {
		if l != nil {
			d.log = l
		}
	}
}

// New constructs a Deduper on client.
func New(client *redis.Client, opts ...Option) *Deduper {
	d := &Deduper{client: client, setKey: defaultSetKey, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord adds key to the set. ZADD NX is atomic, so of two concurrent
// callers exactly one sees the key as new.
func (d *Deduper) SeenAndRecord(ctx context.Context, key string) bool {
	added, err := d.client.ZAddNX(ctx, d.setKey, &redis.Z{
		Score:  float64(d.now().UnixNano()),
		Member: key,
	}).Result()
	if err != nil {
		d.warn(ctx, "redis zadd failed", key, err)
		return false
	}
	if added == 0 {
		return true
	}
	d.trim(ctx)
	return false
}

// trim drops the lowest scored members beyond maxSize.
func (d *Deduper) trim(ctx context.Context) {
	if d.maxSize <= 0 {
		return
	}
	if err := d.client.ZRemRangeByRank(ctx, d.setKey, 0, -(d.maxSize + 1)).Err(); err != nil {
		d.warn(ctx, "redis zremrangebyrank failed", "", err)
	}
}

// Unrecord removes key from the set.
func (d *Deduper) Unrecord(ctx context.Context, key string) {
	if err := d.client.ZRem(ctx, d.setKey, key).Err(); err != nil {
		d.warn(ctx, "redis zrem failed", key, err)
	}
}

// Size returns the set cardinality, or 0 when Redis cannot be reached.
func (d *Deduper) Size() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), sizeTimeout)
	defer cancel()

	n, err := d.client.ZCard(ctx, d.setKey).Result()
	if err != nil {
		d.warn(ctx, "redis zcard failed", "", err)
		return 0
	}
	return n
}

func (d *Deduper) warn(ctx context.Context, msg, key string, err error) {
	if d.log == nil {
		return
	}
	d.log.Warn(ctx, msg, logger.String("key", key), logger.Error(err))
}
