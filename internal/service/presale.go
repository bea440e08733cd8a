package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"presale/internal/aggregate"
	"presale/internal/config"
	"presale/internal/ledger"
	"presale/internal/metrics"
	"presale/internal/source"
)

const SourceAggregates = "kv:aggregates"

// LedgerReader is the subset of the ledger client the read views use.
type LedgerReader interface {
	AccountTx(ctx context.Context, req ledger.AccountTxRequest) (ledger.AccountTxPage, error)
	AccountInfo(ctx context.Context, account string) (ledger.AccountInfo, error)
}

type XRPScanReader interface {
	AccountTransactions(ctx context.Context, account string, page int) ([]ledger.Transaction, int, error)
	RecentPayments(ctx context.Context, account string, count int) ([]ledger.Transaction, error)
	AccountBalance(ctx context.Context, account string) (int64, error)
	Transaction(ctx context.Context, hash string) (ledger.Transaction, error)
}

type DataAPIReader interface {
	AccountPayments(ctx context.Context, account string, limit int) ([]ledger.Transaction, error)
	Transaction(ctx context.Context, hash string) (ledger.Transaction, error)
}

// PresaleService builds the public read views. Any of the readers may be nil;
// the matching source is then left out of the chain.
type PresaleService struct {
	Aggregates *aggregate.Store
	Ledger     LedgerReader
	XRPScan    XRPScanReader
	DataAPI    DataAPIReader
	Flags      *SystemSettingsService
	Logger     *zap.Logger
	Presale    config.PresaleConfig
	Explorer   config.ExplorerConfig
	Ingest     config.IngestConfig
	Now        func() time.Time
}

// chain assembles the ordered payment sources for a view.
func (s *PresaleService) chain(ctx context.Context, view string, withDataAPI bool) source.Chain {
	var sources []source.Source
	if s.Ledger != nil {
		sources = append(sources, observed{view: view, Source: source.LedgerSource{
			Client:    s.Ledger,
			PageLimit: s.Ingest.PageLimit,
			MaxPages:  s.Ingest.MaxPages,
			Now:       s.Now,
		}})
	}
	if s.Flags.IsEnabled(ctx, FeatureExplorerFallback, true) {
		if s.XRPScan != nil {
			sources = append(sources, observed{view: view, Source: source.XRPScanSource{
				Client:   s.XRPScan,
				MaxPages: s.Explorer.MaxPages,
				Now:      s.Now,
			}})
		}
		if withDataAPI && s.DataAPI != nil {
			sources = append(sources, observed{view: view, Source: source.DataAPISource{Client: s.DataAPI, Now: s.Now}})
		}
	}
	return source.NewChain(s.Logger, sources...)
}

func (s *PresaleService) destination(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		address = s.Presale.Destination
	}
	if address == "" {
		return "", invalid(CodeMissingDestination, "no destination configured")
	}
	if !ledger.IsClassicAddress(address) {
		return "", invalid(CodeBadAddress, "%q is not a classic address", address)
	}
	return address, nil
}

// liveBalance reads the account's native balance from the node, then from
// XRPSCAN. It returns 0 when both fail.
func (s *PresaleService) liveBalance(ctx context.Context, address string) int64 {
	if s.Ledger != nil {
		info, err := s.Ledger.AccountInfo(ctx, address)
		if err == nil {
			return info.BalanceDrops
		}
		if s.Logger != nil {
			s.Logger.Debug("account_info failed", zap.String("address", address), zap.Error(err))
		}
	}
	if s.XRPScan != nil {
		drops, err := s.XRPScan.AccountBalance(ctx, address)
		if err == nil {
			return drops
		}
		if s.Logger != nil {
			s.Logger.Debug("xrpscan balance failed", zap.String("address", address), zap.Error(err))
		}
	}
	return 0
}

func (s *PresaleService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// observed counts attempts per view and source.
type observed struct {
	source.Source
	view string
}

func (o observed) FetchPayments(ctx context.Context, destination string, opts source.FetchOptions) (source.Result, error) {
	res, err := o.Source.FetchPayments(ctx, destination, opts)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.SourceFetches.WithLabelValues(o.view, o.Name(), outcome).Inc()
	return res, err
}
