package aggregate

import (
	"context"
	"time"

	"presale/internal/kv"
)

// Lease is a held ingestion lock. It expires on its own if the holder dies.
type Lease struct {
	kv    kv.Store
	key   string
	token string
}

// AcquireLease takes the ingestion lock for destination. It returns nil
// without error when another run holds it.
func (s *Store) AcquireLease(ctx context.Context, destination, token string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	key := LockKey(destination)
	ok, err := s.KV.SetNX(ctx, key, []byte(token), ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{kv: s.KV, key: key, token: token}, nil
}

// Release drops the lock only if this lease still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	_, err := l.kv.CompareAndDelete(ctx, l.key, []byte(l.token))
	return err
}
