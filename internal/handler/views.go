package handler

import (
	"encoding/json"
	"time"

	"presale/internal/models"
	"presale/internal/service"
)

type entryView struct {
	Address     string      `json:"address"`
	TotalDrops  int64       `json:"totalDrops"`
	TotalAmount json.Number `json:"totalAmount"`
	Count       int64       `json:"count"`
	LastSeen    *time.Time  `json:"lastSeen,omitempty"`
}

type eventView struct {
	Hash        string      `json:"hash"`
	From        string      `json:"from"`
	Drops       int64       `json:"drops"`
	Amount      json.Number `json:"amount"`
	LedgerIndex int64       `json:"ledgerIndex,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

func entryViews(entries []service.LeaderboardEntry) []entryView {
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		v := entryView{Address: e.Address, TotalDrops: e.TotalDrops, TotalAmount: num(e.TotalAmount), Count: e.Count}
		if !e.LastSeen.IsZero() {
			seen := e.LastSeen
			v.LastSeen = &seen
		}
		out = append(out, v)
	}
	return out
}

func paymentViews(events []models.PaymentEvent) []eventView {
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{
			Hash:        e.Hash,
			From:        e.From,
			Drops:       e.Drops,
			Amount:      num(e.Amount),
			LedgerIndex: e.LedgerSequence,
			Timestamp:   e.Timestamp,
		})
	}
	return out
}

func recentViews(rows []models.RecentActivityEntry) []eventView {
	out := make([]eventView, 0, len(rows))
	for _, r := range rows {
		out = append(out, eventView{Hash: r.Hash, From: r.From, Drops: r.Drops, Amount: num(r.Amount), Timestamp: r.Timestamp})
	}
	return out
}

func txBody(res service.TxResult) map[string]any {
	body := map[string]any{"validated": res.Validated, "tx": nil}
	if res.Source != "" {
		body["source"] = res.Source
	}
	if res.Tx == nil {
		return body
	}
	tx := map[string]any{
		"hash":     res.Tx.Hash,
		"type":     res.Tx.Type,
		"from":     res.Tx.From,
		"to":       res.Tx.To,
		"currency": res.Tx.Currency,
		"amount":   nil,
	}
	if res.Tx.Amount != nil {
		tx["amount"] = num(*res.Tx.Amount)
		tx["drops"] = res.Tx.Drops
	}
	if res.Tx.DestinationTag != nil {
		tx["destinationTag"] = *res.Tx.DestinationTag
	}
	if res.Tx.Result != "" {
		tx["result"] = res.Tx.Result
	}
	if res.Tx.LedgerIndex > 0 {
		tx["ledgerIndex"] = res.Tx.LedgerIndex
	}
	if res.Tx.Memo != "" {
		tx["memo"] = res.Tx.Memo
	}
	if res.Tx.DateISO != "" {
		tx["dateIso"] = res.Tx.DateISO
	}
	body["tx"] = tx
	return body
}
