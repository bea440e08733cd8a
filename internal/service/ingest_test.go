package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"presale/internal/aggregate"
	"presale/internal/config"
	"presale/internal/kv"
	"presale/internal/ledger"
	"presale/internal/models"
)

func newIngest(store *aggregate.Store, fl *fakeLedger) *IngestService {
	return &IngestService{
		Aggregates: store,
		Ledger:     fl,
		Presale:    config.PresaleConfig{Destination: dest},
		Config:     config.IngestConfig{PageLimit: 200, MaxPages: 1000, LockTTL: time.Minute},
		Now:        clock,
	}
}

func TestIngestAppliesAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	store := aggregate.New(kv.NewMemoryStore(), 0)
	failed := pay("F1", senderC, 9_000_000, 107)
	failed.Result = "tecUNFUNDED_PAYMENT"
	fl := &fakeLedger{pages: [][]ledger.Transaction{
		{pay("H1", senderA, 1_000_000, 101), pay("H2", senderB, 2_000_000, 102)},
		{pay("H3", senderA, 3_000_000, 105), failed},
	}}
	repo := newStubRepo()
	svc := newIngest(store, fl)
	svc.Repo = repo

	res, err := svc.Ingest(ctx, IngestOptions{})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.ProcessedCount != 3 || res.Skipped != 1 || res.SkipCounts["failed_result"] != 1 {
		t.Fatalf("result=%+v", res)
	}
	if res.Pages != 2 || res.Seen != 4 {
		t.Fatalf("pages=%d seen=%d want=2,4", res.Pages, res.Seen)
	}
	// skipped records still move the cursor
	if res.NewCursor != 107 {
		t.Fatalf("new cursor=%d want=107", res.NewCursor)
	}
	cur, _ := store.Cursor(ctx)
	if cur.LedgerSequence != 107 {
		t.Fatalf("stored cursor=%d want=107", cur.LedgerSequence)
	}
	if fl.reqs[0].LedgerIndexMin != 1 || fl.reqs[0].LedgerIndexMax != -1 || !fl.reqs[0].Forward {
		t.Fatalf("first request=%+v", fl.reqs[0])
	}

	sender, _ := store.Sender(ctx, senderA)
	if sender.TotalDrops != 4_000_000 || sender.Count != 2 {
		t.Fatalf("senderA=%+v", sender)
	}
	totals, _ := store.Totals(ctx)
	if totals.Drops != 6_000_000 || totals.Count != 3 {
		t.Fatalf("totals=%+v", totals)
	}

	run, ok := repo.runs[res.RunID]
	if !ok || run.Status != models.IngestRunSucceeded || run.CursorAfter != 107 || run.Processed != 3 {
		t.Fatalf("journal run=%+v", run)
	}
	st := repo.states[SyncScope(dest)]
	if st.Cursor == nil || *st.Cursor != "107" || st.LastError != nil {
		t.Fatalf("sync state=%+v", st)
	}
}

func TestIngestSecondRunResumesAfterCursor(t *testing.T) {
	ctx := context.Background()
	store := aggregate.New(kv.NewMemoryStore(), 0)
	fl := &fakeLedger{pages: [][]ledger.Transaction{{pay("H1", senderA, 1_000_000, 50)}}}
	svc := newIngest(store, fl)
	if _, err := svc.Ingest(ctx, IngestOptions{}); err != nil {
		t.Fatalf("run1: %v", err)
	}
	fl.pages = [][]ledger.Transaction{{pay("H2", senderB, 1_000_000, 60)}}
	res, err := svc.Ingest(ctx, IngestOptions{})
	if err != nil {
		t.Fatalf("run2: %v", err)
	}
	if got := fl.reqs[len(fl.reqs)-1].LedgerIndexMin; got != 51 {
		t.Fatalf("ledger_index_min=%d want=51", got)
	}
	if res.PreviousCursor != 50 || res.NewCursor != 60 {
		t.Fatalf("cursor %d -> %d want 50 -> 60", res.PreviousCursor, res.NewCursor)
	}
}

func TestIngestDuplicateAcrossRunsAppliedOnce(t *testing.T) {
	ctx := context.Background()
	store := aggregate.New(kv.NewMemoryStore(), 0)
	page := []ledger.Transaction{pay("H1", senderA, 1_000_000, 10), pay("H2", senderA, 2_000_000, 11)}
	fl := &fakeLedger{pages: [][]ledger.Transaction{page}}
	svc := newIngest(store, fl)

	if _, err := svc.Ingest(ctx, IngestOptions{}); err != nil {
		t.Fatalf("run1: %v", err)
	}
	// the node returns the same records again, e.g. after a cursor rollback
	res, err := svc.Ingest(ctx, IngestOptions{})
	if err != nil {
		t.Fatalf("run2: %v", err)
	}
	if res.ProcessedCount != 0 || res.Duplicates != 2 {
		t.Fatalf("run2 processed=%d duplicates=%d want=0,2", res.ProcessedCount, res.Duplicates)
	}
	sender, _ := store.Sender(ctx, senderA)
	if sender.TotalDrops != 3_000_000 || sender.Count != 2 {
		t.Fatalf("senderA=%+v", sender)
	}
}

func TestIngestSumIndependentOfPagePartition(t *testing.T) {
	txs := []ledger.Transaction{
		pay("H1", senderA, 1_000_000, 10),
		pay("H2", senderB, 2_500_000, 11),
		pay("H3", senderA, 700_000, 11),
		pay("H4", senderC, 42, 12),
		pay("H5", senderB, 1, 13),
	}
	partitions := [][][]ledger.Transaction{
		{txs},
		{txs[:1], txs[1:3], txs[3:]},
		{txs[:1], txs[1:2], txs[2:3], txs[3:4], txs[4:]},
	}
	for i, pages := range partitions {
		ctx := context.Background()
		store := aggregate.New(kv.NewMemoryStore(), 0)
		res, err := newIngest(store, &fakeLedger{pages: pages}).Ingest(ctx, IngestOptions{})
		if err != nil {
			t.Fatalf("partition %d: %v", i, err)
		}
		totals, _ := store.Totals(ctx)
		if totals.Drops != 4_200_043 || totals.Count != 5 {
			t.Fatalf("partition %d totals=%+v", i, totals)
		}
		if res.NewCursor != 13 {
			t.Fatalf("partition %d cursor=%d want=13", i, res.NewCursor)
		}
		b, _ := store.Sender(ctx, senderB)
		if b.TotalDrops != 2_500_001 {
			t.Fatalf("partition %d senderB=%d", i, b.TotalDrops)
		}
	}
}

func TestIngestRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	store := aggregate.New(kv.NewMemoryStore(), 0)
	held, err := store.AcquireLease(ctx, dest, "other-run", time.Minute)
	if err != nil || held == nil {
		t.Fatalf("pre-acquire lease=%v err=%v", held, err)
	}
	fl := &fakeLedger{}
	_, err = newIngest(store, fl).Ingest(ctx, IngestOptions{})
	if !errors.Is(err, ErrIngestInProgress) {
		t.Fatalf("err=%v want ErrIngestInProgress", err)
	}
	if fl.calls != 0 {
		t.Fatalf("ledger calls=%d want=0", fl.calls)
	}
}

func TestIngestPageErrorKeepsCursor(t *testing.T) {
	ctx := context.Background()
	store := aggregate.New(kv.NewMemoryStore(), 0)
	_, _ = store.AdvanceCursor(ctx, 40, fixedNow)
	fl := &fakeLedger{pageErr: errors.New("node overloaded")}
	repo := newStubRepo()
	svc := newIngest(store, fl)
	svc.Repo = repo

	res, err := svc.Ingest(ctx, IngestOptions{})
	var up *UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("err=%v want UpstreamError", err)
	}
	cur, _ := store.Cursor(ctx)
	if cur.LedgerSequence != 40 || res.NewCursor != 40 {
		t.Fatalf("cursor=%d result=%d want=40", cur.LedgerSequence, res.NewCursor)
	}
	if repo.runs[res.RunID].Status != models.IngestRunFailed {
		t.Fatalf("journal status=%q want=failed", repo.runs[res.RunID].Status)
	}
	// the lease is released after a failed run
	if lease, _ := store.AcquireLease(ctx, dest, "next", time.Minute); lease == nil {
		t.Fatalf("lease still held after failed run")
	}
}

func TestIngestTruncatedCommitsLastFullLedger(t *testing.T) {
	ctx := context.Background()
	store := aggregate.New(kv.NewMemoryStore(), 0)
	fl := &fakeLedger{pages: [][]ledger.Transaction{
		{pay("H1", senderA, 1, 20), pay("H2", senderA, 1, 21)},
		{pay("H3", senderA, 1, 21), pay("H4", senderA, 1, 22)},
	}}
	svc := newIngest(store, fl)
	svc.Config.MaxPages = 1

	res, err := svc.Ingest(ctx, IngestOptions{})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !res.Truncated || res.NewCursor != 20 {
		t.Fatalf("truncated=%v cursor=%d want=true,20", res.Truncated, res.NewCursor)
	}
}

func TestIngestCutoffBoundsRange(t *testing.T) {
	ctx := context.Background()
	store := aggregate.New(kv.NewMemoryStore(), 0)
	_, _ = store.AdvanceCursor(ctx, 500, fixedNow)
	fl := &fakeLedger{}
	res, err := newIngest(store, fl).Ingest(ctx, IngestOptions{CutoffLedger: 400})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if fl.calls != 0 || res.NewCursor != 500 {
		t.Fatalf("calls=%d cursor=%d want=0,500", fl.calls, res.NewCursor)
	}

	_, err = newIngest(store, fl).Ingest(ctx, IngestOptions{CutoffLedger: 900})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if fl.reqs[0].LedgerIndexMin != 501 || fl.reqs[0].LedgerIndexMax != 900 {
		t.Fatalf("request=%+v", fl.reqs[0])
	}
}

func TestIngestValidatesDestination(t *testing.T) {
	fl := &fakeLedger{}
	svc := newIngest(aggregate.New(kv.NewMemoryStore(), 0), fl)
	_, err := svc.Ingest(context.Background(), IngestOptions{Destination: "not-an-address"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != CodeBadAddress {
		t.Fatalf("err=%v want bad_address", err)
	}
	if fl.calls != 0 {
		t.Fatalf("ledger calls=%d want=0", fl.calls)
	}
}

func TestIngestRejectsForeignDestination(t *testing.T) {
	ctx := context.Background()
	store := aggregate.New(kv.NewMemoryStore(), 0)
	fl := &fakeLedger{pages: [][]ledger.Transaction{{pay("H1", senderA, 1_000_000, 50)}}}
	svc := newIngest(store, fl)

	_, err := svc.Ingest(ctx, IngestOptions{Destination: senderB})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != CodeDestinationMismatch {
		t.Fatalf("err=%v want destination_mismatch", err)
	}
	if fl.calls != 0 {
		t.Fatalf("ledger calls=%d want=0", fl.calls)
	}
	if cur, _ := store.Cursor(ctx); cur.LedgerSequence != 0 {
		t.Fatalf("cursor=%d want=0", cur.LedgerSequence)
	}

	// the configured destination spelled out explicitly is still accepted
	res, err := svc.Ingest(ctx, IngestOptions{Destination: dest})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.ProcessedCount != 1 || res.NewCursor != 50 {
		t.Fatalf("processed=%d cursor=%d want=1,50", res.ProcessedCount, res.NewCursor)
	}
}

// failingKV fails the first sender write, before any aggregate changes.
type failingKV struct {
	kv.Store
	fail bool
}

func (f *failingKV) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	if f.fail {
		return 0, errors.New("redis: connection reset")
	}
	return f.Store.HIncrBy(ctx, key, field, delta)
}

func TestIngestReleasesMarkerWhenNothingApplied(t *testing.T) {
	ctx := context.Background()
	fkv := &failingKV{Store: kv.NewMemoryStore(), fail: true}
	store := aggregate.New(fkv, 0)
	fl := &fakeLedger{pages: [][]ledger.Transaction{{pay("H1", senderA, 5, 9)}}}
	svc := newIngest(store, fl)

	if _, err := svc.Ingest(ctx, IngestOptions{}); err == nil {
		t.Fatalf("expected apply error")
	}
	if cur, _ := store.Cursor(ctx); cur.LedgerSequence != 0 {
		t.Fatalf("cursor=%d want=0 after failed run", cur.LedgerSequence)
	}

	fkv.fail = false
	res, err := svc.Ingest(ctx, IngestOptions{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.ProcessedCount != 1 || res.Duplicates != 0 {
		t.Fatalf("retry processed=%d duplicates=%d want=1,0", res.ProcessedCount, res.Duplicates)
	}
}
