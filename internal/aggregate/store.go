package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"presale/internal/kv"
	"presale/internal/ledger"
	"presale/internal/models"
)

const DefaultRecentLimit = 500

// Store maps the presale read models onto the key-value layout. Every
// mutation is one atomic primitive, so concurrent writers never lose updates.
type Store struct {
	KV          kv.Store
	RecentLimit int
}

func New(store kv.Store, recentLimit int) *Store {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Store{KV: store, RecentLimit: recentLimit}
}

// Cursor returns the last fully scanned ledger; zero when none was recorded.
func (s *Store) Cursor(ctx context.Context) (models.IngestionCursor, error) {
	b, found, err := s.KV.Get(ctx, KeyCursor)
	if err != nil {
		return models.IngestionCursor{}, fmt.Errorf("read cursor: %w", err)
	}
	if !found {
		return models.IngestionCursor{}, nil
	}
	var cur models.IngestionCursor
	if err := json.Unmarshal(b, &cur); err != nil {
		return models.IngestionCursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	return cur, nil
}

// AdvanceCursor stores ledgerIndex when it is greater than the stored cursor
// and reports whether it wrote. Callers hold the ingestion lease.
func (s *Store) AdvanceCursor(ctx context.Context, ledgerIndex int64, now time.Time) (bool, error) {
	cur, err := s.Cursor(ctx)
	if err != nil {
		return false, err
	}
	if ledgerIndex <= cur.LedgerSequence {
		return false, nil
	}
	b, err := json.Marshal(models.IngestionCursor{LedgerSequence: ledgerIndex, UpdatedAt: now.UTC()})
	if err != nil {
		return false, err
	}
	if err := s.KV.Set(ctx, KeyCursor, b, 0); err != nil {
		return false, fmt.Errorf("write cursor: %w", err)
	}
	return true, nil
}

// ClaimPayment sets the per-hash marker. It reports false when the payment
// was already applied by an earlier or concurrent run.
func (s *Store) ClaimPayment(ctx context.Context, ev models.PaymentEvent) (bool, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return false, err
	}
	ok, err := s.KV.SetNX(ctx, TxKey(ev.Hash), b, 0)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", ev.Hash, err)
	}
	return ok, nil
}

func (s *Store) ReleasePayment(ctx context.Context, hash string) error {
	return s.KV.Delete(ctx, TxKey(hash))
}

// ErrPartialApply reports a failure after at least one aggregate was already
// mutated for the payment.
var ErrPartialApply = errors.New("payment partially applied")

// ApplyPayment folds ev into the sender, leaderboard, recent and total
// aggregates. A failure on the first write leaves no trace; later failures
// are wrapped in ErrPartialApply.
func (s *Store) ApplyPayment(ctx context.Context, ev models.PaymentEvent) error {
	if _, err := s.KV.HIncrBy(ctx, AddrKey(ev.From), fieldDrops, ev.Drops); err != nil {
		return fmt.Errorf("apply %s: %w", ev.Hash, err)
	}
	tsMillis := float64(ev.Timestamp.UnixMilli())
	recent, err := json.Marshal(models.RecentActivityEntry{
		Hash:      ev.Hash,
		From:      ev.From,
		Amount:    ev.Amount,
		Drops:     ev.Drops,
		Timestamp: ev.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPartialApply, ev.Hash, err)
	}
	xrp, _ := ev.Amount.Float64()

	steps := []func() error{
		func() error { _, err := s.KV.HIncrBy(ctx, AddrKey(ev.From), fieldCount, 1); return err },
		func() error { _, err := s.KV.ZIncrBy(ctx, KeyLeaderboard, float64(ev.Drops), ev.From); return err },
		func() error { return s.KV.ZAddGT(ctx, KeyLastSeen, tsMillis, ev.From) },
		func() error { return s.KV.ZAdd(ctx, KeyRecent, tsMillis, string(recent)) },
		func() error { return s.KV.ZRemRangeByRank(ctx, KeyRecent, 0, -int64(s.recentLimit())-1) },
		func() error { _, err := s.KV.IncrBy(ctx, KeyTotalDrops, ev.Drops); return err },
		func() error { _, err := s.KV.IncrBy(ctx, KeyTotalCount, 1); return err },
		func() error { _, err := s.KV.IncrByFloat(ctx, KeyTotalXRP, xrp); return err },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPartialApply, ev.Hash, err)
		}
	}
	return nil
}

func (s *Store) recentLimit() int {
	if s.RecentLimit <= 0 {
		return DefaultRecentLimit
	}
	return s.RecentLimit
}

// Leaderboard returns the top senders by total drops. top <= 0 returns all.
func (s *Store) Leaderboard(ctx context.Context, top int) ([]models.SenderAggregate, error) {
	stop := int64(-1)
	if top > 0 {
		stop = int64(top) - 1
	}
	rows, err := s.KV.ZRevRangeWithScores(ctx, KeyLeaderboard, 0, stop)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	out := make([]models.SenderAggregate, 0, len(rows))
	for _, row := range rows {
		agg, err := s.Sender(ctx, row.Member)
		if err != nil {
			return nil, err
		}
		if agg.TotalDrops == 0 {
			agg.TotalDrops = int64(row.Score)
			agg.TotalAmount = ledger.DropsToXRP(agg.TotalDrops)
		}
		out = append(out, agg)
	}
	return out, nil
}

func (s *Store) Sender(ctx context.Context, address string) (models.SenderAggregate, error) {
	h, err := s.KV.HGetAll(ctx, AddrKey(address))
	if err != nil {
		return models.SenderAggregate{}, fmt.Errorf("read sender %s: %w", address, err)
	}
	agg := models.SenderAggregate{Address: address}
	agg.TotalDrops, _ = strconv.ParseInt(h[fieldDrops], 10, 64)
	agg.Count, _ = strconv.ParseInt(h[fieldCount], 10, 64)
	agg.TotalAmount = ledger.DropsToXRP(agg.TotalDrops)
	if ms, ok, err := s.KV.ZScore(ctx, KeyLastSeen, address); err != nil {
		return models.SenderAggregate{}, fmt.Errorf("read last seen %s: %w", address, err)
	} else if ok {
		agg.LastSeen = time.UnixMilli(int64(ms)).UTC()
	}
	return agg, nil
}

type Totals struct {
	Drops int64
	Count int64
}

func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	for key, dst := range map[string]*int64{KeyTotalDrops: &t.Drops, KeyTotalCount: &t.Count} {
		b, found, err := s.KV.Get(ctx, key)
		if err != nil {
			return Totals{}, fmt.Errorf("read %s: %w", key, err)
		}
		if !found {
			continue
		}
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return Totals{}, fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = n
	}
	return t, nil
}

// Recent returns the newest contributions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.RecentActivityEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.KV.ZRevRangeWithScores(ctx, KeyRecent, 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("read recent: %w", err)
	}
	out := make([]models.RecentActivityEntry, 0, len(rows))
	for _, row := range rows {
		var e models.RecentActivityEntry
		if err := json.Unmarshal([]byte(row.Member), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, rec models.SnapshotRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.KV.Set(ctx, KeySnapshot, b, 0); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Snapshot returns the current snapshot, or nil when none was finalized.
func (s *Store) Snapshot(ctx context.Context) (*models.SnapshotRecord, error) {
	b, found, err := s.KV.Get(ctx, KeySnapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	var rec models.SnapshotRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &rec, nil
}
