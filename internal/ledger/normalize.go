package ledger

import (
	"time"

	"presale/internal/models"
)

type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipNotValidated      SkipReason = "not_validated"
	SkipNotPayment        SkipReason = "not_payment"
	SkipFailedResult      SkipReason = "failed_result"
	SkipWrongDestination  SkipReason = "wrong_destination"
	SkipNonNativeAmount   SkipReason = "non_native_amount"
	SkipNonPositiveAmount SkipReason = "non_positive_amount"
	SkipMissingHash       SkipReason = "missing_hash"
)

// NormalizePayment turns a history record into a PaymentEvent for destination,
// or reports why the record does not count toward the presale. now stamps
// records that carry no close time.
func NormalizePayment(tx Transaction, destination string, now time.Time) (models.PaymentEvent, SkipReason) {
	if !tx.Validated {
		return models.PaymentEvent{}, SkipNotValidated
	}
	if tx.Kind != KindPayment {
		return models.PaymentEvent{}, SkipNotPayment
	}
	if tx.Result != "" && tx.Result != ResultSuccess {
		return models.PaymentEvent{}, SkipFailedResult
	}
	if tx.Destination != destination {
		return models.PaymentEvent{}, SkipWrongDestination
	}
	amt := tx.DeliveredOrAmount()
	if !amt.IsNative() {
		return models.PaymentEvent{}, SkipNonNativeAmount
	}
	if amt.Drops <= 0 {
		return models.PaymentEvent{}, SkipNonPositiveAmount
	}
	if tx.Hash == "" {
		return models.PaymentEvent{}, SkipMissingHash
	}

	ts := tx.Date
	if ts.IsZero() {
		ts = now.UTC()
	}
	return models.PaymentEvent{
		Hash:           tx.Hash,
		From:           tx.Account,
		To:             tx.Destination,
		Drops:          amt.Drops,
		Amount:         DropsToXRP(amt.Drops),
		LedgerSequence: tx.LedgerIndex,
		Timestamp:      ts,
		Validated:      true,
	}, SkipNone
}
