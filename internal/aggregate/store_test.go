package aggregate

import (
	"context"
	"testing"
	"time"

	"presale/internal/kv"
	"presale/internal/ledger"
	"presale/internal/models"
)

func event(hash, from string, drops int64, ts time.Time) models.PaymentEvent {
	return models.PaymentEvent{
		Hash:      hash,
		From:      from,
		To:        "rDest",
		Drops:     drops,
		Amount:    ledger.DropsToXRP(drops),
		Timestamp: ts,
		Validated: true,
	}
}

func TestApplyPaymentAggregates(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 2)
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	evs := []models.PaymentEvent{
		event("H1", "rA", 1_000_000, t0),
		event("H2", "rB", 3_000_000, t0.Add(time.Minute)),
		event("H3", "rA", 500_000, t0.Add(2*time.Minute)),
	}
	for _, ev := range evs {
		if err := s.ApplyPayment(ctx, ev); err != nil {
			t.Fatalf("apply %s: %v", ev.Hash, err)
		}
	}

	lb, err := s.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb) != 2 || lb[0].Address != "rB" || lb[1].Address != "rA" {
		t.Fatalf("leaderboard=%+v", lb)
	}
	if lb[1].TotalDrops != 1_500_000 || lb[1].Count != 2 || lb[1].TotalAmount.String() != "1.5" {
		t.Fatalf("rA=%+v", lb[1])
	}
	if !lb[1].LastSeen.Equal(t0.Add(2 * time.Minute)) {
		t.Fatalf("rA last seen=%v", lb[1].LastSeen)
	}

	totals, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Drops != 4_500_000 || totals.Count != 3 {
		t.Fatalf("totals=%+v", totals)
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Hash != "H3" || recent[1].Hash != "H2" {
		t.Fatalf("recent=%+v (trimmed to the newest 2)", recent)
	}
}

func TestClaimPaymentOnce(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 0)
	ev := event("H1", "rA", 1, time.Now())
	if ok, err := s.ClaimPayment(ctx, ev); err != nil || !ok {
		t.Fatalf("first claim ok=%v err=%v", ok, err)
	}
	if ok, _ := s.ClaimPayment(ctx, ev); ok {
		t.Fatalf("second claim should report duplicate")
	}
	_ = s.ReleasePayment(ctx, ev.Hash)
	if ok, _ := s.ClaimPayment(ctx, ev); !ok {
		t.Fatalf("claim after release should succeed")
	}
}

func TestAdvanceCursorMonotonic(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 0)
	now := time.Now()

	if wrote, _ := s.AdvanceCursor(ctx, 100, now); !wrote {
		t.Fatalf("first advance should write")
	}
	if wrote, _ := s.AdvanceCursor(ctx, 90, now); wrote {
		t.Fatalf("lower cursor must not be written")
	}
	if wrote, _ := s.AdvanceCursor(ctx, 100, now); wrote {
		t.Fatalf("equal cursor must not be written")
	}
	cur, err := s.Cursor(ctx)
	if err != nil || cur.LedgerSequence != 100 {
		t.Fatalf("cursor=%+v err=%v want=100", cur, err)
	}
}

func TestLeaseExclusive(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 0)

	first, err := s.AcquireLease(ctx, "rDest", "run-1", time.Minute)
	if err != nil || first == nil {
		t.Fatalf("first lease=%v err=%v", first, err)
	}
	second, err := s.AcquireLease(ctx, "rDest", "run-2", time.Minute)
	if err != nil || second != nil {
		t.Fatalf("second lease=%v err=%v want nil", second, err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	third, _ := s.AcquireLease(ctx, "rDest", "run-3", time.Minute)
	if third == nil {
		t.Fatalf("lease should be free after release")
	}
}

func TestSnapshotRoundTripOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 0)
	if rec, err := s.Snapshot(ctx); err != nil || rec != nil {
		t.Fatalf("empty snapshot rec=%v err=%v", rec, err)
	}
	_ = s.SaveSnapshot(ctx, models.SnapshotRecord{Allocations: map[string]string{"rA": "1"}})
	_ = s.SaveSnapshot(ctx, models.SnapshotRecord{Allocations: map[string]string{"rB": "2"}})
	rec, err := s.Snapshot(ctx)
	if err != nil || rec == nil {
		t.Fatalf("snapshot rec=%v err=%v", rec, err)
	}
	if _, ok := rec.Allocations["rA"]; ok || rec.Allocations["rB"] != "2" {
		t.Fatalf("allocations=%v want only rB", rec.Allocations)
	}
}
