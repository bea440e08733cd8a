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

const (
	DefaultXRPScanURL = "https://api.xrpscan.com"
	// XRPScanPageSize is the fixed number of rows per account transactions page.
	XRPScanPageSize = 25
)

type XRPScan struct {
	BaseURL   string
	HTTP      *http.Client
	Cache     cacheStore
	TTL       time.Duration
	UserAgent string
}

func (x XRPScan) fetcher() fetcher {
	base := x.BaseURL
	if strings.TrimSpace(base) == "" {
		base = DefaultXRPScanURL
	}
	return fetcher{provider: "xrpscan", baseURL: base, http: x.HTTP, cache: x.Cache, ttl: x.TTL, userAgent: x.UserAgent}
}

// AccountTransactions returns one page (1-based) of the account history and
// the raw row count, which callers compare with XRPScanPageSize to detect the last page.
func (x XRPScan) AccountTransactions(ctx context.Context, account string, page int) ([]ledger.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	f := x.fetcher()
	path := fmt.Sprintf("/api/v1/account/%s/transactions", url.PathEscape(account))
	q := map[string]string{"page": strconv.Itoa(page)}
	u, err := f.buildURL(path, q)
	if err != nil {
		return nil, 0, err
	}
	body, err := f.get(ctx, cacheKey("xrpscan", "transactions", map[string]string{"account": account, "page": q["page"]}), u)
	if err != nil {
		return nil, 0, err
	}
	rows, err := rowList(body)
	if err != nil {
		return nil, 0, fmt.Errorf("xrpscan transactions: %w", err)
	}
	txs, err := decodeRows(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("xrpscan transactions: %w", err)
	}
	return txs, len(rows), nil
}

// RecentPayments returns the newest successful payments involving account.
func (x XRPScan) RecentPayments(ctx context.Context, account string, count int) ([]ledger.Transaction, error) {
	if count <= 0 {
		count = XRPScanPageSize
	}
	f := x.fetcher()
	path := fmt.Sprintf("/api/v1/account/%s/transactions", url.PathEscape(account))
	q := map[string]string{
		"type":       "Payment",
		"result":     "tesSUCCESS",
		"count":      strconv.Itoa(count),
		"descending": "true",
	}
	u, err := f.buildURL(path, q)
	if err != nil {
		return nil, err
	}
	body, err := f.get(ctx, cacheKey("xrpscan", "recent", map[string]string{"account": account, "count": q["count"]}), u)
	if err != nil {
		return nil, err
	}
	rows, err := rowList(body)
	if err != nil {
		return nil, fmt.Errorf("xrpscan recent: %w", err)
	}
	return decodeRows(rows)
}

// AccountBalance returns the account's native balance in drops.
func (x XRPScan) AccountBalance(ctx context.Context, account string) (int64, error) {
	f := x.fetcher()
	u, err := f.buildURL(fmt.Sprintf("/api/v1/account/%s", url.PathEscape(account)), nil)
	if err != nil {
		return 0, err
	}
	body, err := f.get(ctx, cacheKey("xrpscan", "account", map[string]string{"account": account}), u)
	if err != nil {
		return 0, err
	}
	var res struct {
		AccountData struct {
			Balance string `json:"Balance"`
		} `json:"account_data"`
		XRPBalance json.RawMessage `json:"xrpBalance"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("xrpscan account: %w", err)
	}
	if b := strings.TrimSpace(res.AccountData.Balance); b != "" {
		return strconv.ParseInt(b, 10, 64)
	}
	// xrpBalance is rendered in XRP, as a number or a string.
	if len(res.XRPBalance) > 0 && string(res.XRPBalance) != "null" {
		return xrpBalanceDrops(res.XRPBalance)
	}
	return 0, fmt.Errorf("xrpscan account: no balance for %s", account)
}

// Transaction looks up a single transaction by hash.
func (x XRPScan) Transaction(ctx context.Context, hash string) (ledger.Transaction, error) {
	f := x.fetcher()
	u, err := f.buildURL(fmt.Sprintf("/api/v1/transaction/%s", url.PathEscape(hash)), nil)
	if err != nil {
		return ledger.Transaction{}, err
	}
	body, err := f.get(ctx, cacheKey("xrpscan", "tx", map[string]string{"hash": hash}), u)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx, err := decodeRow(body)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("xrpscan tx: %w", err)
	}
	if tx.Hash == "" {
		tx.Hash = ledger.NormalizeTxHash(hash)
	}
	return tx, nil
}

func xrpBalanceDrops(raw json.RawMessage) (int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return ledger.XRPToDrops(s)
}

// rowList accepts either a bare array or an object with a "transactions" array.
func rowList(body json.RawMessage) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var rows []json.RawMessage
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var wrapped struct {
		Transactions []json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Transactions, nil
}
