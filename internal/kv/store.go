package kv

import (
	"context"
	"time"
)

// Z is a sorted-set member with its score.
type Z struct {
	Member string
	Score  float64
}

// Store is the key-value capability backing cursor, aggregate and snapshot
// state. Every mutation is a single atomic server-side primitive; callers never
// read-modify-write.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// CompareAndDelete removes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)

	IncrBy(ctx context.Context, key string, incr int64) (int64, error)
	IncrByFloat(ctx context.Context, key string, incr float64) (float64, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZAddGT sets the score only when it is greater than the stored one (or the member is new).
	ZAddGT(ctx context.Context, key string, score float64, member string) error
	ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error)
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	// ZRevRangeWithScores returns members ordered by score descending, stop inclusive, -1 for the end.
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error)
	// ZRemRangeByRank removes members by ascending rank, stop inclusive.
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error
	ZCard(ctx context.Context, key string) (int64, error)

	Ping(ctx context.Context) error
}
