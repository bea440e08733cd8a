package source

import (
	"context"
	"time"

	"presale/internal/explorer"
	"presale/internal/ledger"
)

type XRPScanClient interface {
	AccountTransactions(ctx context.Context, account string, page int) ([]ledger.Transaction, int, error)
}

// XRPScanSource pages the explorer's account history, newest first. It stops
// on an empty page, a short page or the page cap.
type XRPScanSource struct {
	Client   XRPScanClient
	MaxPages int
	Now      func() time.Time
}

func (s XRPScanSource) Name() string { return NameXRPScan }

func (s XRPScanSource) FetchPayments(ctx context.Context, destination string, opts FetchOptions) (Result, error) {
	maxPages := s.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}
	if maxPages <= 0 {
		maxPages = 60
	}

	c := newCollector(destination, nowFunc(s.Now))
	for page := 1; page <= maxPages; page++ {
		txs, rows, err := s.Client.AccountTransactions(ctx, destination, page)
		if err != nil {
			return Result{}, err
		}
		if rows == 0 {
			return c.result(NameXRPScan, false), nil
		}
		c.add(filterFromLedger(txs, opts.StartLedger))
		if rows < explorer.XRPScanPageSize {
			return c.result(NameXRPScan, false), nil
		}
	}
	return c.result(NameXRPScan, true), nil
}

type DataAPIClient interface {
	AccountPayments(ctx context.Context, account string, limit int) ([]ledger.Transaction, error)
}

// DataAPISource reads the newest payments from the historical data API.
// It returns a single page, flagged truncated when the page came back full.
type DataAPISource struct {
	Client DataAPIClient
	Limit  int
	Now    func() time.Time
}

func (s DataAPISource) Name() string { return NameDataAPI }

func (s DataAPISource) FetchPayments(ctx context.Context, destination string, opts FetchOptions) (Result, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = 50
	}
	txs, err := s.Client.AccountPayments(ctx, destination, limit)
	if err != nil {
		return Result{}, err
	}
	c := newCollector(destination, nowFunc(s.Now))
	c.add(filterFromLedger(txs, opts.StartLedger))
	return c.result(NameDataAPI, len(txs) >= limit), nil
}

func filterFromLedger(txs []ledger.Transaction, start int64) []ledger.Transaction {
	if start <= 0 {
		return txs
	}
	out := txs[:0:0]
	for _, tx := range txs {
		if tx.LedgerIndex == 0 || tx.LedgerIndex >= start {
			out = append(out, tx)
		}
	}
	return out
}
