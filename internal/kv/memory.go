package kv

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memItem struct {
	v       []byte
	expires time.Time
	noexp   bool
}

// MemoryStore is a process-local Store. It follows Redis semantics closely
// enough for local runs and tests; state does not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]memItem
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  map[string]memItem{},
		hashes: map[string]map[string]string{},
		zsets:  map[string]map[string]float64{},
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.liveItem(key)
	if !ok {
		return nil, false, nil
	}
	return clone(it.v), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	s.mu.Lock()
	s.items[key] = newItem(value, ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveItem(key); ok {
		return false, nil
	}
	s.items[key] = newItem(value, ttl)
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.items, key)
	delete(s.hashes, key)
	delete(s.zsets, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.liveItem(key)
	if !ok || !bytes.Equal(it.v, value) {
		return false, nil
	}
	delete(s.items, key)
	return true, nil
}

func (s *MemoryStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hash(key)
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]string{}
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hash(key)
	cur := int64(0)
	if raw, ok := h[field]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("hash value is not an integer: %s.%s", key, field)
		}
		cur = n
	}
	cur += incr
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (s *MemoryStore) IncrBy(ctx context.Context, key string, incr int64) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := int64(0)
	if it, ok := s.liveItem(key); ok {
		n, err := strconv.ParseInt(string(it.v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value is not an integer: %s", key)
		}
		cur = n
	}
	cur += incr
	s.items[key] = newItem([]byte(strconv.FormatInt(cur, 10)), 0)
	return cur, nil
}

func (s *MemoryStore) IncrByFloat(ctx context.Context, key string, incr float64) (float64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := 0.0
	if it, ok := s.liveItem(key); ok {
		f, err := strconv.ParseFloat(string(it.v), 64)
		if err != nil {
			return 0, fmt.Errorf("value is not a valid float: %s", key)
		}
		cur = f
	}
	cur += incr
	s.items[key] = newItem([]byte(strconv.FormatFloat(cur, 'f', -1, 64)), 0)
	return cur, nil
}

func (s *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	_ = ctx
	s.mu.Lock()
	s.zset(key)[member] = score
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ZAddGT(ctx context.Context, key string, score float64, member string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zset(key)
	if cur, ok := z[member]; ok && cur >= score {
		return nil
	}
	z[member] = score
	return nil
}

func (s *MemoryStore) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zset(key)
	z[member] += incr
	return z[member], nil
}

func (s *MemoryStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.zsets[key][member]
	return score, ok, nil
}

func (s *MemoryStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	_ = ctx
	s.mu.RLock()
	sorted := sortedZ(s.zsets[key])
	s.mu.RUnlock()
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	lo, hi, ok := rankWindow(int64(len(sorted)), start, stop)
	if !ok {
		return []Z{}, nil
	}
	return sorted[lo : hi+1], nil
}

func (s *MemoryStore) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zsets[key]
	sorted := sortedZ(z)
	lo, hi, ok := rankWindow(int64(len(sorted)), start, stop)
	if !ok {
		return nil
	}
	for _, m := range sorted[lo : hi+1] {
		delete(z, m.Member)
	}
	return nil
}

func (s *MemoryStore) ZCard(ctx context.Context, key string) (int64, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.zsets[key])), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// liveItem must be called with the write lock held; it evicts expired keys.
func (s *MemoryStore) liveItem(key string) (memItem, bool) {
	it, ok := s.items[key]
	if !ok {
		return memItem{}, false
	}
	if !it.noexp && !it.expires.IsZero() && time.Now().After(it.expires) {
		delete(s.items, key)
		return memItem{}, false
	}
	return it, true
}

func (s *MemoryStore) hash(key string) map[string]string {
	h, ok := s.hashes[key]
	if !ok {
		h = map[string]string{}
		s.hashes[key] = h
	}
	return h
}

func (s *MemoryStore) zset(key string) map[string]float64 {
	z, ok := s.zsets[key]
	if !ok {
		z = map[string]float64{}
		s.zsets[key] = z
	}
	return z
}

func newItem(value []byte, ttl time.Duration) memItem {
	it := memItem{v: clone(value)}
	if ttl <= 0 {
		it.noexp = true
	} else {
		it.expires = time.Now().Add(ttl)
	}
	return it
}

// sortedZ orders members by score ascending, ties by member, as Redis does.
func sortedZ(z map[string]float64) []Z {
	out := make([]Z, 0, len(z))
	for m, score := range z {
		out = append(out, Z{Member: m, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

// rankWindow resolves Redis-style start/stop (negative counts from the end).
func rankWindow(n, start, stop int64) (int64, int64, bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
