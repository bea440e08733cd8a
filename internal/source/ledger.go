package source

import (
	"context"
	"time"

	"presale/internal/ledger"
)

type LedgerQuerier interface {
	AccountTx(ctx context.Context, req ledger.AccountTxRequest) (ledger.AccountTxPage, error)
}

// LedgerSource scans account_tx forward from the start ledger to the newest validated one.
type LedgerSource struct {
	Client    LedgerQuerier
	PageLimit int
	MaxPages  int
	Now       func() time.Time
}

func (s LedgerSource) Name() string { return NameLedger }

func (s LedgerSource) FetchPayments(ctx context.Context, destination string, opts FetchOptions) (Result, error) {
	limit := s.PageLimit
	if limit <= 0 {
		limit = 200
	}
	maxPages := s.MaxPages
	if maxPages <= 0 {
		maxPages = 1000
	}
	minLedger := opts.StartLedger
	if minLedger <= 0 {
		minLedger = -1
	}

	c := newCollector(destination, nowFunc(s.Now))
	req := ledger.AccountTxRequest{
		Account:        destination,
		LedgerIndexMin: minLedger,
		LedgerIndexMax: -1,
		Forward:        true,
		Limit:          limit,
	}
	for page := 0; page < maxPages; page++ {
		res, err := s.Client.AccountTx(ctx, req)
		if err != nil {
			return Result{}, err
		}
		c.add(res.Transactions)
		if res.Marker == nil {
			return c.result(NameLedger, false), nil
		}
		req.Marker = res.Marker
	}
	return c.result(NameLedger, true), nil
}
