package service

import (
	"context"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"presale/internal/ledger"
	"presale/internal/models"
	"presale/internal/source"
)

const raisedEventLimit = 10

type RaisedResult struct {
	Address     string                `json:"address"`
	TotalDrops  int64                 `json:"totalDrops"`
	TotalAmount decimal.Decimal       `json:"totalAmount"`
	LiveBalance decimal.Decimal       `json:"liveBalance"`
	EventCount  int                   `json:"eventCount"`
	Events      []models.PaymentEvent `json:"events"`
	Source      string                `json:"source"`
	Partial     bool                  `json:"partial"`
}

// Raised totals payments into address (the presale destination when empty)
// and lists the newest of them, enriched from the explorers.
func (s *PresaleService) Raised(ctx context.Context, address string) (RaisedResult, error) {
	dest, err := s.destination(address)
	if err != nil {
		return RaisedResult{}, err
	}
	res, err := s.chain(ctx, "raised", true).FetchPayments(ctx, dest, source.FetchOptions{StartLedger: s.Presale.StartLedger})
	if err != nil {
		return RaisedResult{}, err
	}
	var drops int64
	for _, p := range res.Payments {
		drops += p.Drops
	}

	events := append([]models.PaymentEvent(nil), res.Payments...)
	if res.Source != source.NameXRPScan && s.XRPScan != nil {
		txs, err := s.XRPScan.RecentPayments(ctx, dest, 25)
		if err != nil && s.Logger != nil {
			s.Logger.Debug("xrpscan enrichment failed", zap.String("address", dest), zap.Error(err))
		}
		events = append(events, s.normalizeAll(txs, dest)...)
	}
	if len(events) == 0 && s.DataAPI != nil {
		txs, err := s.DataAPI.AccountPayments(ctx, dest, 50)
		if err != nil && s.Logger != nil {
			s.Logger.Debug("data api enrichment failed", zap.String("address", dest), zap.Error(err))
		}
		events = append(events, s.normalizeAll(txs, dest)...)
	}
	events = dedupEvents(events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > raisedEventLimit {
		events = events[:raisedEventLimit]
	}

	return RaisedResult{
		Address:     dest,
		TotalDrops:  drops,
		TotalAmount: ledger.DropsToXRP(drops),
		LiveBalance: ledger.DropsToXRP(s.liveBalance(ctx, dest)),
		EventCount:  len(res.Payments),
		Events:      events,
		Source:      res.Source,
		Partial:     res.Truncated,
	}, nil
}

func (s *PresaleService) normalizeAll(txs []ledger.Transaction, dest string) []models.PaymentEvent {
	now := s.now()
	out := make([]models.PaymentEvent, 0, len(txs))
	for _, tx := range txs {
		if ev, reason := ledger.NormalizePayment(tx, dest, now); reason == ledger.SkipNone {
			out = append(out, ev)
		}
	}
	return out
}

// dedupEvents keeps the first event per hash, or per sender and amount when
// the hash is missing.
func dedupEvents(events []models.PaymentEvent) []models.PaymentEvent {
	seen := map[string]struct{}{}
	out := events[:0:0]
	for _, ev := range events {
		key := ev.Hash
		if key == "" {
			key = ev.From + ":" + strconv.FormatInt(ev.Drops, 10)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}
