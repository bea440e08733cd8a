package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"presale/internal/ledger"
	"presale/internal/models"
)

const (
	NameLedger  = "xrpl:wss"
	NameXRPScan = "xrpscan:fallback"
	NameDataAPI = "ripple-data:fallback"
)

var ErrAllSourcesFailed = errors.New("all payment sources failed")

type FetchOptions struct {
	// StartLedger bounds the ledger scan from below; 0 scans the full history.
	StartLedger int64
	// MaxPages overrides the source's page cap when positive.
	MaxPages int
}

type Result struct {
	Source   string
	Payments []models.PaymentEvent
	// Fetched counts raw history records examined, eligible or not.
	Fetched int
	// Truncated is set when the page cap ended the scan early.
	Truncated bool
}

// Source yields the eligible payments into a destination from one backend.
type Source interface {
	Name() string
	FetchPayments(ctx context.Context, destination string, opts FetchOptions) (Result, error)
}

// Chain tries sources in order and returns the first success.
type Chain struct {
	Sources []Source
	Logger  *zap.Logger
}

func NewChain(logger *zap.Logger, sources ...Source) Chain {
	return Chain{Sources: sources, Logger: logger}
}

func (c Chain) FetchPayments(ctx context.Context, destination string, opts FetchOptions) (Result, error) {
	var errs []error
	for _, s := range c.Sources {
		if s == nil {
			continue
		}
		res, err := s.FetchPayments(ctx, destination, opts)
		if err == nil {
			res.Source = s.Name()
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if c.Logger != nil {
			c.Logger.Warn("payment source failed", zap.String("source", s.Name()), zap.Error(err))
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return Result{}, fmt.Errorf("%w: no sources configured", ErrAllSourcesFailed)
	}
	return Result{}, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
}

// collector normalizes records and drops repeated hashes, which explorers can
// return when new rows shift page boundaries mid-scan.
type collector struct {
	destination string
	now         time.Time
	seen        map[string]struct{}
	payments    []models.PaymentEvent
	fetched     int
}

func newCollector(destination string, now time.Time) *collector {
	return &collector{destination: destination, now: now, seen: map[string]struct{}{}}
}

func (c *collector) add(txs []ledger.Transaction) {
	for _, tx := range txs {
		c.fetched++
		ev, reason := ledger.NormalizePayment(tx, c.destination, c.now)
		if reason != ledger.SkipNone {
			continue
		}
		if _, dup := c.seen[ev.Hash]; dup {
			continue
		}
		c.seen[ev.Hash] = struct{}{}
		c.payments = append(c.payments, ev)
	}
}

func (c *collector) result(name string, truncated bool) Result {
	return Result{Source: name, Payments: c.payments, Fetched: c.fetched, Truncated: truncated}
}

func nowFunc(f func() time.Time) time.Time {
	if f != nil {
		return f()
	}
	return time.Now()
}
