package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"presale/internal/ledger"
	"presale/internal/source"
)

// SummaryResult is Partial when the winning source stopped before the start
// of history, e.g. the data API's single page of newest payments.
type SummaryResult struct {
	Address     string          `json:"address"`
	TotalDrops  int64           `json:"totalDrops"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	LiveBalance decimal.Decimal `json:"liveBalance"`
	Target      decimal.Decimal `json:"target"`
	Percent     decimal.Decimal `json:"percent"`
	Source      string          `json:"source"`
	Partial     bool            `json:"partial"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

var hundred = decimal.NewFromInt(100)

func (s *PresaleService) Summary(ctx context.Context) (SummaryResult, error) {
	dest, err := s.destination("")
	if err != nil {
		return SummaryResult{}, err
	}
	res, err := s.chain(ctx, "summary", true).FetchPayments(ctx, dest, source.FetchOptions{StartLedger: s.Presale.StartLedger})
	if err != nil {
		return SummaryResult{}, err
	}
	var drops int64
	for _, p := range res.Payments {
		drops += p.Drops
	}
	total := ledger.DropsToXRP(drops)
	target := decimal.NewFromFloat(s.Presale.Target)
	return SummaryResult{
		Address:     dest,
		TotalDrops:  drops,
		TotalAmount: total,
		LiveBalance: ledger.DropsToXRP(s.liveBalance(ctx, dest)),
		Target:      target,
		Percent:     PercentOfTarget(total, target),
		Source:      res.Source,
		Partial:     res.Truncated,
		UpdatedAt:   s.now(),
	}, nil
}

// PercentOfTarget is min(100, total/target*100) rounded to two places; 0 for a non-positive target.
func PercentOfTarget(total, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	pct := total.Div(target).Mul(hundred)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct.Round(2)
}
