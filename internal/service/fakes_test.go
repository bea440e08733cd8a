package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"presale/internal/explorer"
	"presale/internal/ledger"
	"presale/internal/models"
	"presale/internal/repository"
)

const (
	dest    = "rsvjkcy91roaSeEdokijvmCbFBLoDFoXRP"
	senderA = "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"
	senderB = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	senderC = "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe"
	issuer  = "rDNvpqSzXqh1bHqCM5eGFhHLYwMH9ci3Zy"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func pay(hash, from string, drops, ledgerIndex int64) ledger.Transaction {
	return ledger.Transaction{
		Hash:        hash,
		Kind:        ledger.KindPayment,
		Account:     from,
		Destination: dest,
		Amount:      ledger.NativeAmount(drops),
		Result:      ledger.ResultSuccess,
		LedgerIndex: ledgerIndex,
		Date:        fixedNow.Add(time.Duration(ledgerIndex) * time.Second),
		Validated:   true,
	}
}

// fakeLedger serves pages in order; the marker is the next page index.
type fakeLedger struct {
	mu       sync.Mutex
	pages    [][]ledger.Transaction
	pageErr  error
	reqs     []ledger.AccountTxRequest
	balance  int64
	infoErr  error
	lines    []ledger.TrustLine
	linesErr error
	calls    int
}

func (f *fakeLedger) AccountTx(ctx context.Context, req ledger.AccountTxRequest) (ledger.AccountTxPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reqs = append(f.reqs, req)
	if f.pageErr != nil {
		return ledger.AccountTxPage{}, f.pageErr
	}
	i := 0
	if req.Marker != nil {
		_ = json.Unmarshal(req.Marker, &i)
	}
	var out ledger.AccountTxPage
	if i < len(f.pages) {
		out.Transactions = f.pages[i]
	}
	if i+1 < len(f.pages) {
		out.Marker = json.RawMessage(strconv.Itoa(i + 1))
	}
	return out, nil
}

func (f *fakeLedger) AccountInfo(ctx context.Context, account string) (ledger.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.infoErr != nil {
		return ledger.AccountInfo{}, f.infoErr
	}
	return ledger.AccountInfo{Account: account, BalanceDrops: f.balance}, nil
}

func (f *fakeLedger) AccountLines(ctx context.Context, account, peer string) ([]ledger.TrustLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.linesErr != nil {
		return nil, f.linesErr
	}
	return f.lines, nil
}

type fakeXRPScan struct {
	pages      [][]ledger.Transaction
	recent     []ledger.Transaction
	balance    int64
	balanceErr error
	txs        map[string]ledger.Transaction
	calls      int
}

func (f *fakeXRPScan) AccountTransactions(ctx context.Context, account string, page int) ([]ledger.Transaction, int, error) {
	f.calls++
	if page-1 < len(f.pages) {
		p := f.pages[page-1]
		return p, len(p), nil
	}
	return nil, 0, nil
}

func (f *fakeXRPScan) RecentPayments(ctx context.Context, account string, count int) ([]ledger.Transaction, error) {
	f.calls++
	return f.recent, nil
}

func (f *fakeXRPScan) AccountBalance(ctx context.Context, account string) (int64, error) {
	f.calls++
	return f.balance, f.balanceErr
}

func (f *fakeXRPScan) Transaction(ctx context.Context, hash string) (ledger.Transaction, error) {
	f.calls++
	if tx, ok := f.txs[hash]; ok {
		return tx, nil
	}
	return ledger.Transaction{}, &explorer.APIError{Provider: "xrpscan", Status: 404}
}

type fakeDataAPI struct {
	payments []ledger.Transaction
	err      error
	txs      map[string]ledger.Transaction
	calls    int
}

func (f *fakeDataAPI) AccountPayments(ctx context.Context, account string, limit int) ([]ledger.Transaction, error) {
	f.calls++
	return f.payments, f.err
}

func (f *fakeDataAPI) Transaction(ctx context.Context, hash string) (ledger.Transaction, error) {
	f.calls++
	if tx, ok := f.txs[hash]; ok {
		return tx, nil
	}
	return ledger.Transaction{}, errors.New("data api unavailable")
}

type stubRepo struct {
	mu       sync.Mutex
	runs     map[string]models.IngestRun
	states   map[string]models.SyncState
	settings map[string]models.SystemSetting
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		runs:     map[string]models.IngestRun{},
		states:   map[string]models.SyncState{},
		settings: map[string]models.SystemSetting{},
	}
}

func (r *stubRepo) InsertIngestRun(ctx context.Context, run *models.IngestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *stubRepo) FinishIngestRun(ctx context.Context, run *models.IngestRun) error {
	return r.InsertIngestRun(ctx, run)
}

func (r *stubRepo) ListIngestRuns(ctx context.Context, params repository.ListIngestRunsParams) ([]models.IngestRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.IngestRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	return out, nil
}

func (r *stubRepo) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[scope]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *stubRepo) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.Scope] = *state
	return nil
}

func (r *stubRepo) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SyncState, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st)
	}
	return out, nil
}

func (r *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[item.Key] = *item
	return nil
}

func (r *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *stubRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SystemSetting, 0, len(r.settings))
	for _, item := range r.settings {
		out = append(out, item)
	}
	return out, nil
}
