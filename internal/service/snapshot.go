package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"presale/internal/aggregate"
	"presale/internal/ledger"
	"presale/internal/models"
)

// ratePrecision is the number of decimal places kept when dividing supply by the total.
const ratePrecision = 24

// SnapshotService splits the token supply pro rata over contributions and
// stores the result as the current snapshot.
type SnapshotService struct {
	Aggregates *aggregate.Store
	Supply     decimal.Decimal
	Logger     *zap.Logger
	Now        func() time.Time
}

func (s *SnapshotService) FinalizeSnapshot(ctx context.Context, contributions map[string]decimal.Decimal) (models.SnapshotRecord, error) {
	if s == nil || s.Aggregates == nil {
		return models.SnapshotRecord{}, errors.New("snapshot service not configured")
	}
	rec, err := Allocate(s.Supply, contributions)
	if err != nil {
		return models.SnapshotRecord{}, err
	}
	rec.CreatedAt = s.now()
	if err := s.Aggregates.SaveSnapshot(ctx, rec); err != nil {
		return models.SnapshotRecord{}, err
	}
	if s.Logger != nil {
		s.Logger.Info("snapshot finalized",
			zap.String("rate", rec.Rate.String()),
			zap.String("total", rec.TotalContributed.String()),
			zap.Int("count", len(rec.Allocations)))
	}
	return rec, nil
}

// FinalizeFromAggregates snapshots every sender on the durable leaderboard.
func (s *SnapshotService) FinalizeFromAggregates(ctx context.Context) (models.SnapshotRecord, error) {
	if s == nil || s.Aggregates == nil {
		return models.SnapshotRecord{}, errors.New("snapshot service not configured")
	}
	rows, err := s.Aggregates.Leaderboard(ctx, 0)
	if err != nil {
		return models.SnapshotRecord{}, err
	}
	contributions := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		contributions[r.Address] = r.TotalAmount
	}
	return s.FinalizeSnapshot(ctx, contributions)
}

// Current returns the stored snapshot, or ErrNotFound.
func (s *SnapshotService) Current(ctx context.Context) (models.SnapshotRecord, error) {
	if s == nil || s.Aggregates == nil {
		return models.SnapshotRecord{}, ErrNotFound
	}
	rec, err := s.Aggregates.Snapshot(ctx)
	if err != nil {
		return models.SnapshotRecord{}, err
	}
	if rec == nil {
		return models.SnapshotRecord{}, ErrNotFound
	}
	return *rec, nil
}

// Allocate computes rate = supply / total and amount * rate per address.
// Allocations keep full precision and are not floored.
func Allocate(supply decimal.Decimal, contributions map[string]decimal.Decimal) (models.SnapshotRecord, error) {
	total := decimal.Zero
	clean := make(map[string]decimal.Decimal, len(contributions))
	for addr, amount := range contributions {
		addr = strings.TrimSpace(addr)
		if !ledger.IsClassicAddress(addr) {
			return models.SnapshotRecord{}, invalid(CodeBadAddress, "%q is not a classic address", addr)
		}
		if amount.IsNegative() {
			return models.SnapshotRecord{}, invalid(CodeInvalidAmount, "negative amount for %s", addr)
		}
		clean[addr] = clean[addr].Add(amount)
		total = total.Add(amount)
	}
	if !total.IsPositive() {
		return models.SnapshotRecord{}, invalid(CodeNoTotal, "contributions sum to %s", total.String())
	}
	if !supply.IsPositive() {
		return models.SnapshotRecord{}, errors.New("token supply for sale is not positive")
	}

	rate := supply.DivRound(total, ratePrecision)
	allocations := make(map[string]string, len(clean))
	for addr, amount := range clean {
		allocations[addr] = amount.Mul(rate).String()
	}
	return models.SnapshotRecord{
		Rate:             rate,
		TotalContributed: total,
		Allocations:      allocations,
	}, nil
}

func (s *SnapshotService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
