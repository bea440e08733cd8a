package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"presale/internal/ledger"
)

const DefaultDataAPIURL = "https://data.ripple.com"

// DataAPI is a client for the historical Ripple Data API (v2).
type DataAPI struct {
	BaseURL   string
	HTTP      *http.Client
	Cache     cacheStore
	TTL       time.Duration
	UserAgent string
}

func (d DataAPI) fetcher() fetcher {
	base := d.BaseURL
	if strings.TrimSpace(base) == "" {
		base = DefaultDataAPIURL
	}
	return fetcher{provider: "ripple-data", baseURL: base, http: d.HTTP, cache: d.Cache, ttl: d.TTL, userAgent: d.UserAgent}
}

// AccountPayments returns the newest successful payments involving account, newest first.
func (d DataAPI) AccountPayments(ctx context.Context, account string, limit int) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	f := d.fetcher()
	q := map[string]string{
		"type":       "Payment",
		"result":     "tesSUCCESS",
		"limit":      strconv.Itoa(limit),
		"descending": "true",
	}
	u, err := f.buildURL(fmt.Sprintf("/v2/accounts/%s/transactions", url.PathEscape(account)), q)
	if err != nil {
		return nil, err
	}
	body, err := f.get(ctx, cacheKey("ripple-data", "transactions", map[string]string{"account": account, "limit": q["limit"]}), u)
	if err != nil {
		return nil, err
	}
	var res struct {
		Result       string            `json:"result"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("ripple-data transactions: %w", err)
	}
	if res.Result != "" && res.Result != "success" {
		return nil, fmt.Errorf("ripple-data transactions: result %q", res.Result)
	}
	return decodeRows(res.Transactions)
}

// Transaction looks up a single transaction by hash.
func (d DataAPI) Transaction(ctx context.Context, hash string) (ledger.Transaction, error) {
	f := d.fetcher()
	u, err := f.buildURL(fmt.Sprintf("/v2/transactions/%s", url.PathEscape(hash)), nil)
	if err != nil {
		return ledger.Transaction{}, err
	}
	body, err := f.get(ctx, cacheKey("ripple-data", "tx", map[string]string{"hash": hash}), u)
	if err != nil {
		return ledger.Transaction{}, err
	}
	var res struct {
		Transaction json.RawMessage `json:"transaction"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return ledger.Transaction{}, fmt.Errorf("ripple-data tx: %w", err)
	}
	row := body
	if len(res.Transaction) > 0 && strings.HasPrefix(strings.TrimSpace(string(res.Transaction)), "{") {
		row = res.Transaction
	}
	tx, err := decodeRow(row)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("ripple-data tx: %w", err)
	}
	if tx.Kind == "" {
		return ledger.Transaction{}, &APIError{Provider: "ripple-data", Status: http.StatusNotFound}
	}
	if tx.Hash == "" {
		tx.Hash = ledger.NormalizeTxHash(hash)
	}
	return tx, nil
}
