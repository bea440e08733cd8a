package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent is one eligible native payment into the presale destination.
type PaymentEvent struct {
	Hash           string          `json:"hash"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	Drops          int64           `json:"drops"`
	Amount         decimal.Decimal `json:"amount"`
	LedgerSequence int64           `json:"ledgerIndex"`
	Timestamp      time.Time       `json:"timestamp"`
	Validated      bool            `json:"validated"`
}

type IngestionCursor struct {
	LedgerSequence int64     `json:"ledger_index"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SenderAggregate struct {
	Address     string          `json:"address"`
	TotalDrops  int64           `json:"totalDrops"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Count       int64           `json:"count"`
	LastSeen    time.Time       `json:"lastSeen"`
}

type RecentActivityEntry struct {
	Hash      string          `json:"hash"`
	From      string          `json:"from"`
	Amount    decimal.Decimal `json:"amount"`
	Drops     int64           `json:"drops"`
	Timestamp time.Time       `json:"timestamp"`
}

type SnapshotRecord struct {
	Rate             decimal.Decimal   `json:"rate"`
	TotalContributed decimal.Decimal   `json:"totalContributed"`
	Allocations      map[string]string `json:"allocations"`
	CreatedAt        time.Time         `json:"createdAt"`
}
