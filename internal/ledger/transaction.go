package ledger

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	KindPayment = "Payment"

	ResultSuccess = "tesSUCCESS"

	// RippleEpochOffset is the number of seconds between the Unix epoch and 2000-01-01T00:00:00Z.
	RippleEpochOffset = 946684800
)

// Transaction is a decoded history record. Kind carries TransactionType; only
// Payment records populate Destination and the amounts.
type Transaction struct {
	Hash           string
	Kind           string
	Account        string
	Destination    string
	DestinationTag *uint32
	Amount         Amount
	// Delivered comes from meta.delivered_amount (or DeliveredAmount); AmountUnknown when absent.
	Delivered   Amount
	Result      string
	LedgerIndex int64
	// Date is the ledger close time; zero when the record carries none.
	Date      time.Time
	Validated bool
	Memos     []Memo
}

type Memo struct {
	Type   string `json:"type,omitempty"`
	Data   string `json:"data,omitempty"`
	Format string `json:"format,omitempty"`
}

// DeliveredOrAmount prefers the delivered amount recorded in metadata.
func (t Transaction) DeliveredOrAmount() Amount {
	if t.Delivered.Kind != AmountUnknown {
		return t.Delivered
	}
	return t.Amount
}

// MemoText returns the first memo's data decoded from hex, or the raw value
// when it is not valid hex.
func (t Transaction) MemoText() string {
	for _, m := range t.Memos {
		if m.Data == "" {
			continue
		}
		if b, err := hex.DecodeString(m.Data); err == nil {
			return string(b)
		}
		return m.Data
	}
	return ""
}

func RippleTime(seconds int64) time.Time {
	return time.Unix(seconds+RippleEpochOffset, 0).UTC()
}

type entryJSON struct {
	Tx           json.RawMessage `json:"tx"`
	TxJSON       json.RawMessage `json:"tx_json"`
	Meta         json.RawMessage `json:"meta"`
	Validated    *bool           `json:"validated"`
	LedgerIndex  json.Number     `json:"ledger_index"`
	Hash         string          `json:"hash"`
	Date         json.RawMessage `json:"date"`
	CloseTimeISO string          `json:"close_time_iso"`
}

type txJSON struct {
	Hash            string          `json:"hash"`
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	DestinationTag  *uint32         `json:"DestinationTag"`
	Amount          Amount          `json:"Amount"`
	DeliverMax      Amount          `json:"DeliverMax"`
	Date            json.RawMessage `json:"date"`
	LedgerIndex     json.Number     `json:"ledger_index"`
	Meta            json.RawMessage `json:"meta"`
	Memos           []struct {
		Memo struct {
			MemoType   string `json:"MemoType"`
			MemoData   string `json:"MemoData"`
			MemoFormat string `json:"MemoFormat"`
		} `json:"Memo"`
	} `json:"Memos"`
}

type metaJSON struct {
	TransactionResult string `json:"TransactionResult"`
	DeliveredAmount   Amount `json:"delivered_amount"`
	DeliveredAmountV1 Amount `json:"DeliveredAmount"`
}

// DecodeEntry decodes one history record. It accepts the node's account_tx
// shapes (tx with API v1, tx_json with API v2) as well as explorer rows that
// nest the transaction under "tx" or inline it.
// Validated is left false when the record does not say; callers that read
// from validated-only history set it themselves.
func DecodeEntry(raw []byte) (Transaction, error) {
	var e entryJSON
	if err := json.Unmarshal(raw, &e); err != nil {
		return Transaction{}, fmt.Errorf("decode entry: %w", err)
	}
	body := firstObject(e.TxJSON, e.Tx)
	if body == nil {
		body = raw
	}
	var tx txJSON
	if err := json.Unmarshal(body, &tx); err != nil {
		return Transaction{}, fmt.Errorf("decode tx: %w", err)
	}

	out := Transaction{
		Hash:           firstNonEmpty(e.Hash, tx.Hash),
		Kind:           tx.TransactionType,
		Account:        tx.Account,
		Destination:    tx.Destination,
		DestinationTag: tx.DestinationTag,
		Amount:         tx.Amount,
	}
	if out.Amount.Kind == AmountUnknown {
		out.Amount = tx.DeliverMax
	}
	if e.Validated != nil {
		out.Validated = *e.Validated
	}
	out.LedgerIndex = firstInt(e.LedgerIndex, tx.LedgerIndex)

	metaRaw := firstObject(e.Meta, tx.Meta)
	if metaRaw != nil {
		var m metaJSON
		// Binary metadata arrives as a hex string and is ignored.
		if err := json.Unmarshal(metaRaw, &m); err == nil {
			out.Result = m.TransactionResult
			out.Delivered = m.DeliveredAmount
			if out.Delivered.Kind == AmountUnknown {
				out.Delivered = m.DeliveredAmountV1
			}
		}
	}

	out.Date = parseDate(tx.Date)
	if out.Date.IsZero() {
		out.Date = parseDate(e.Date)
	}
	if out.Date.IsZero() && e.CloseTimeISO != "" {
		if ts, err := time.Parse(time.RFC3339, e.CloseTimeISO); err == nil {
			out.Date = ts.UTC()
		}
	}

	for _, m := range tx.Memos {
		if m.Memo.MemoData == "" && m.Memo.MemoType == "" {
			continue
		}
		out.Memos = append(out.Memos, Memo{Type: m.Memo.MemoType, Data: m.Memo.MemoData, Format: m.Memo.MemoFormat})
	}
	out.Hash = NormalizeTxHash(out.Hash)
	return out, nil
}

// parseDate accepts ripple-epoch seconds or an RFC 3339 string.
func parseDate(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		s = strings.TrimSpace(s)
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return ts.UTC()
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}
	}
	secs, err := n.Int64()
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return RippleTime(secs)
}

func firstObject(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		c = bytes.TrimSpace(c)
		if len(c) > 0 && c[0] == '{' {
			return c
		}
	}
	return nil
}

func firstInt(candidates ...json.Number) int64 {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if n, err := c.Int64(); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
