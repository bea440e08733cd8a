package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"presale/internal/aggregate"
	"presale/internal/config"
	"presale/internal/kv"
	"presale/internal/ledger"
	"presale/internal/service"
)

const (
	dest    = "rsvjkcy91roaSeEdokijvmCbFBLoDFoXRP"
	senderA = "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"
	senderB = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	issuer  = "rDNvpqSzXqh1bHqCM5eGFhHLYwMH9ci3Zy"
	secret  = "s3cret"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type stubLedger struct {
	txs   []ledger.Transaction
	lines []ledger.TrustLine
}

func (s *stubLedger) AccountTx(ctx context.Context, req ledger.AccountTxRequest) (ledger.AccountTxPage, error) {
	return ledger.AccountTxPage{Transactions: s.txs}, nil
}

func (s *stubLedger) AccountInfo(ctx context.Context, account string) (ledger.AccountInfo, error) {
	return ledger.AccountInfo{Account: account, BalanceDrops: 7_000_000}, nil
}

func (s *stubLedger) AccountLines(ctx context.Context, account, peer string) ([]ledger.TrustLine, error) {
	return s.lines, nil
}

func pay(hash, from string, drops, ledgerIndex int64) ledger.Transaction {
	return ledger.Transaction{
		Hash:        hash,
		Kind:        ledger.KindPayment,
		Account:     from,
		Destination: dest,
		Amount:      ledger.NativeAmount(drops),
		Result:      ledger.ResultSuccess,
		LedgerIndex: ledgerIndex,
		Date:        fixedNow,
		Validated:   true,
	}
}

type fixture struct {
	engine *gin.Engine
	store  *aggregate.Store
	ledger *stubLedger
}

func newFixture(txs ...ledger.Transaction) *fixture {
	gin.SetMode(gin.TestMode)
	store := aggregate.New(kv.NewMemoryStore(), 10)
	lg := &stubLedger{txs: txs}
	now := func() time.Time { return fixedNow }
	presale := config.PresaleConfig{Destination: dest, Target: 100}
	ingestCfg := config.IngestConfig{Secret: secret, LockTTL: time.Minute}

	r := gin.New()
	(&PresaleHandler{Presale: &service.PresaleService{
		Aggregates: store,
		Ledger:     lg,
		Presale:    presale,
		Ingest:     ingestCfg,
		Now:        now,
	}}).Register(r)
	(&AdminHandler{
		Ingest:   &service.IngestService{Aggregates: store, Ledger: lg, Presale: presale, Config: ingestCfg, Now: now},
		Snapshot: &service.SnapshotService{Aggregates: store, Supply: decimal.NewFromInt(50_000_000_000), Now: now},
		Settings: &service.SystemSettingsService{},
		Secret:   secret,
	}).Register(r)
	(&ClaimHandler{Claim: &service.ClaimService{
		Aggregates: store,
		Ledger:     lg,
		Static:     map[string]string{senderA: "1000"},
		Token:      config.TokenConfig{Currency: "PRS", Issuer: issuer},
	}}).Register(r)
	(&HealthHandler{KV: kv.NewMemoryStore()}).Register(r)
	return &fixture{engine: r, store: store, ledger: lg}
}

func (f *fixture) do(method, path, body string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	out := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(w.Body.Bytes()))
	dec.UseNumber()
	_ = dec.Decode(&out)
	return w, out
}

func withSecret() http.Header {
	h := http.Header{}
	h.Set("X-Presale-Secret", secret)
	return h
}

func TestLeaderboardRendersNumbersAndCaches(t *testing.T) {
	f := newFixture(
		pay("A1", senderA, 1_500_000, 10),
		pay("B1", senderB, 3_000_000, 11),
		pay("A2", senderA, 500_000, 12),
	)
	w, body := f.do(http.MethodGet, "/api/presale/leaderboard?top=5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != publicCache {
		t.Fatalf("cache-control=%q", got)
	}
	if body["ok"] != true || body["address"] != dest {
		t.Fatalf("body=%v", body)
	}
	rows, _ := body["leaderboard"].([]any)
	if len(rows) != 2 {
		t.Fatalf("leaderboard=%v", body["leaderboard"])
	}
	first := rows[0].(map[string]any)
	if first["address"] != senderB || first["totalAmount"] != json.Number("3") {
		t.Fatalf("first=%v", first)
	}
	second := rows[1].(map[string]any)
	if second["totalAmount"] != json.Number("2") || second["count"] != json.Number("2") {
		t.Fatalf("second=%v", second)
	}
}

func TestLeaderboardRejectsUnknownMode(t *testing.T) {
	f := newFixture()
	w, body := f.do(http.MethodGet, "/api/presale/leaderboard?mode=fast", "", nil)
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_mode" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}

func TestLeaderboardSince(t *testing.T) {
	f := newFixture(pay("A1", senderA, 1_000_000, 10))
	w, body := f.do(http.MethodGet, "/api/presale/leaderboard?since=-4", "", nil)
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_since" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	w, body = f.do(http.MethodGet, "/api/presale/leaderboard?mode=durable&since=5", "", nil)
	if w.Code != http.StatusOK || body["source"] != "xrpl:wss" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}

func TestRaisedBadAddress(t *testing.T) {
	f := newFixture()
	w, body := f.do(http.MethodGet, "/api/presale/raised?address=not-an-address", "", nil)
	if w.Code != http.StatusBadRequest || body["ok"] != false || body["error"] != "bad_address" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}

func TestSummaryPercent(t *testing.T) {
	f := newFixture(pay("A1", senderA, 25_000_000, 10))
	w, body := f.do(http.MethodGet, "/api/presale/summary", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if body["totalAmount"] != json.Number("25") || body["percent"] != json.Number("25") || body["liveBalance"] != json.Number("7") {
		t.Fatalf("body=%v", body)
	}
	if body["partial"] != false {
		t.Fatalf("partial=%v want=false for a full ledger scan", body["partial"])
	}
}

func TestTxBadHash(t *testing.T) {
	f := newFixture()
	w, body := f.do(http.MethodGet, "/api/presale/tx/xyz", "", nil)
	if w.Code != http.StatusBadRequest || body["error"] != "bad_hash" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}

func TestIngestRequiresSecret(t *testing.T) {
	f := newFixture(pay("A1", senderA, 1_000_000, 10))
	w, body := f.do(http.MethodPost, "/api/presale/ingest", "", nil)
	if w.Code != http.StatusUnauthorized || body["error"] != "unauthorized" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	if cur, _ := f.store.Cursor(context.Background()); cur.LedgerSequence != 0 {
		t.Fatalf("cursor moved without auth: %d", cur.LedgerSequence)
	}
}

func TestIngestAppliesAndReportsCursor(t *testing.T) {
	f := newFixture(pay("A1", senderA, 1_000_000, 10), pay("B1", senderB, 2_000_000, 14))
	w, body := f.do(http.MethodPost, "/api/presale/ingest", "", withSecret())
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if body["processedCount"] != json.Number("2") || body["newCursor"] != json.Number("14") {
		t.Fatalf("body=%v", body)
	}

	// a second pass over the same history applies nothing
	w, body = f.do(http.MethodPost, "/api/presale/ingest?secret="+secret, "", nil)
	if w.Code != http.StatusOK || body["processedCount"] != json.Number("0") {
		t.Fatalf("second run status=%d body=%v", w.Code, body)
	}
	totals, _ := f.store.Totals(context.Background())
	if totals.Drops != 3_000_000 || totals.Count != 2 {
		t.Fatalf("totals=%+v", totals)
	}
}

func TestIngestRejectsOtherDestination(t *testing.T) {
	f := newFixture(pay("A1", senderA, 1_000_000, 10))
	w, body := f.do(http.MethodPost, "/api/presale/ingest?destination="+senderB, "", withSecret())
	if w.Code != http.StatusBadRequest || body["error"] != "destination_mismatch" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	if cur, _ := f.store.Cursor(context.Background()); cur.LedgerSequence != 0 {
		t.Fatalf("cursor=%d want=0", cur.LedgerSequence)
	}
}

func TestIngestConflictWhileLeaseHeld(t *testing.T) {
	f := newFixture(pay("A1", senderA, 1_000_000, 10))
	lease, err := f.store.AcquireLease(context.Background(), dest, "other-run", time.Minute)
	if err != nil || lease == nil {
		t.Fatalf("lease=%v err=%v", lease, err)
	}
	w, body := f.do(http.MethodPost, "/api/presale/ingest", "", withSecret())
	if w.Code != http.StatusConflict || body["error"] != "ingest_in_progress" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}

func TestSnapshotFromBody(t *testing.T) {
	f := newFixture()
	payload := fmt.Sprintf(`{"addresses":{"%s":100,"%s":300}}`, senderA, senderB)
	w, body := f.do(http.MethodPost, "/api/presale/snapshot", payload, withSecret())
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if body["rate"] != json.Number("125000000") || body["totalContributed"] != json.Number("400") || body["count"] != json.Number("2") {
		t.Fatalf("body=%v", body)
	}

	w, body = f.do(http.MethodGet, "/api/claim/preview?address="+senderB, "", nil)
	if w.Code != http.StatusOK || body["amount"] != "37500000000" || body["source"] != service.ClaimSourceSnapshot {
		t.Fatalf("preview status=%d body=%v", w.Code, body)
	}
}

func TestSnapshotRejectsBadBody(t *testing.T) {
	f := newFixture()
	w, body := f.do(http.MethodPost, "/api/presale/snapshot", `{"addresses":{"x":"abc"}}`, withSecret())
	if w.Code != http.StatusBadRequest || body["error"] != service.CodeInvalidBody {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	w, body = f.do(http.MethodPost, "/api/presale/snapshot", `{"addresses":{}}`, withSecret())
	if w.Code != http.StatusBadRequest || body["error"] != service.CodeNoTotal {
		t.Fatalf("empty map status=%d body=%v", w.Code, body)
	}
}

func TestClaimPreviewNotInSnapshot(t *testing.T) {
	f := newFixture()
	w, body := f.do(http.MethodGet, "/api/claim/preview?address="+senderB, "", nil)
	if w.Code != http.StatusNotFound || body["error"] != "not_in_snapshot" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}

func TestClaimEligibility(t *testing.T) {
	f := newFixture()
	payload := fmt.Sprintf(`{"address":"%s"}`, senderA)

	w, body := f.do(http.MethodPost, "/api/claim/eligibility", payload, nil)
	if w.Code != http.StatusBadRequest || body["error"] != "no_trustline" {
		t.Fatalf("without line status=%d body=%v", w.Code, body)
	}

	f.ledger.lines = []ledger.TrustLine{{Account: issuer, Currency: "PRS", Limit: "1000000"}}
	w, body = f.do(http.MethodPost, "/api/claim/eligibility", payload, nil)
	if w.Code != http.StatusOK || body["trustline"] != true || body["amount"] != "1000" {
		t.Fatalf("with line status=%d body=%v", w.Code, body)
	}
}

func TestSwitchesReadOnlyWithoutJournal(t *testing.T) {
	f := newFixture()
	w, body := f.do(http.MethodGet, "/api/presale/settings/switches", "", withSecret())
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	switches := body["switches"].(map[string]any)
	if switches[service.FeatureExplorerFallback] != true {
		t.Fatalf("switches=%v", switches)
	}
	w, _ = f.do(http.MethodPut, "/api/presale/settings/switches/durable_leaderboard", `{"enabled":true}`, withSecret())
	if w.Code != http.StatusConflict {
		t.Fatalf("put status=%d want=409", w.Code)
	}
	w, _ = f.do(http.MethodPut, "/api/presale/settings/switches/nope", `{"enabled":true}`, withSecret())
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown switch status=%d want=404", w.Code)
	}
}

func TestSyncStateEmptyWithoutJournal(t *testing.T) {
	f := newFixture()
	w, body := f.do(http.MethodGet, "/api/presale/sync-state", "", withSecret())
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if states, _ := body["states"].([]any); len(states) != 0 {
		t.Fatalf("states=%v", body["states"])
	}
}

func TestReadyz(t *testing.T) {
	f := newFixture()
	w, _ := f.do(http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}
}

func TestWriteServiceErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&service.ValidationError{Code: service.CodeBadHash}, http.StatusBadRequest, "bad_hash"},
		{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("x: %w", service.ErrNotInSnapshot), http.StatusNotFound, "not_in_snapshot"},
		{service.ErrNotFound, http.StatusNotFound, "not_found"},
		{service.ErrIngestInProgress, http.StatusConflict, "ingest_in_progress"},
		{service.ErrNoTrustline, http.StatusBadRequest, "no_trustline"},
		{fmt.Errorf("chain: %w", service.ErrAllSourcesFailed), http.StatusBadGateway, "both_sources_failed"},
		{&service.UpstreamError{Source: "ledger", Err: errors.New("dial")}, http.StatusBadGateway, "upstream_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "server_error"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		writeServiceError(c, nil, tc.err)
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if w.Code != tc.status || body["error"] != tc.code || body["ok"] != false {
			t.Fatalf("%v: status=%d body=%v want=%d %s", tc.err, w.Code, body, tc.status, tc.code)
		}
	}
}
