package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"presale/internal/ledger"
	"presale/internal/source"
)

type TxView struct {
	Hash           string           `json:"hash"`
	Type           string           `json:"type"`
	From           string           `json:"from"`
	To             string           `json:"to"`
	DestinationTag *uint32          `json:"destinationTag,omitempty"`
	Drops          int64            `json:"drops,omitempty"`
	Amount         *decimal.Decimal `json:"amount"`
	Currency       string           `json:"currency"`
	Result         string           `json:"result,omitempty"`
	LedgerIndex    int64            `json:"ledgerIndex,omitempty"`
	Memo           string           `json:"memo,omitempty"`
	DateISO        string           `json:"dateIso,omitempty"`
}

type TxResult struct {
	Validated bool    `json:"validated"`
	Tx        *TxView `json:"tx"`
	Source    string  `json:"source,omitempty"`
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type txLookup func(ctx context.Context, hash string) (ledger.Transaction, error)

// Tx looks a transaction up in the data API, then XRPSCAN. A hash neither
// knows yields an unvalidated empty result rather than an error.
func (s *PresaleService) Tx(ctx context.Context, hash string) (TxResult, error) {
	hash = ledger.NormalizeTxHash(hash)
	if !ledger.IsTxHash(hash) {
		return TxResult{}, invalid(CodeBadHash, "expected 64 hex characters")
	}

	type lookup struct {
		name string
		fn   txLookup
	}
	var lookups []lookup
	if s.DataAPI != nil {
		lookups = append(lookups, lookup{source.NameDataAPI, s.DataAPI.Transaction})
	}
	if s.XRPScan != nil {
		lookups = append(lookups, lookup{source.NameXRPScan, s.XRPScan.Transaction})
	}
	for _, l := range lookups {
		tx, err := l.fn(ctx, hash)
		if err != nil {
			if ctx.Err() != nil {
				return TxResult{}, ctx.Err()
			}
			if s.Logger != nil {
				s.Logger.Debug("tx lookup failed", zap.String("source", l.name), zap.String("hash", hash), zap.Error(err))
			}
			continue
		}
		view := txView(tx, hash)
		return TxResult{Validated: tx.Validated, Tx: &view, Source: l.name}, nil
	}
	return TxResult{Validated: false}, nil
}

func txView(tx ledger.Transaction, hash string) TxView {
	v := TxView{
		Hash:           tx.Hash,
		Type:           tx.Kind,
		From:           tx.Account,
		To:             tx.Destination,
		DestinationTag: tx.DestinationTag,
		Result:         tx.Result,
		LedgerIndex:    tx.LedgerIndex,
		Memo:           tx.MemoText(),
	}
	if v.Hash == "" {
		v.Hash = hash
	}
	amt := tx.DeliveredOrAmount()
	switch amt.Kind {
	case ledger.AmountNative:
		xrp := ledger.DropsToXRP(amt.Drops)
		v.Drops = amt.Drops
		v.Amount = &xrp
		v.Currency = "XRP"
	case ledger.AmountIssued:
		v.Currency = strings.TrimSpace(amt.Issued.Currency)
		if d, err := decimal.NewFromString(amt.Issued.Value); err == nil {
			v.Amount = &d
		}
	}
	if !tx.Date.IsZero() {
		v.DateISO = tx.Date.UTC().Format(isoMillis)
	}
	return v
}
