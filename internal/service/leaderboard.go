package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"presale/internal/ledger"
	"presale/internal/metrics"
	"presale/internal/models"
	"presale/internal/source"
)

const (
	DefaultLeaderboardTop = 25
	MaxLeaderboardTop     = 200
	MaxExplorerPages      = 200

	ModeLive    = "live"
	ModeDurable = "durable"
)

type LeaderboardOptions struct {
	Top int
	// Mode is "live" (replay the source chain) or "durable" (read KV aggregates).
	// Empty picks durable when the durable switch is on.
	Mode string
	// Pages overrides the explorer fallback page cap when positive.
	Pages int
	// Since replays from this ledger onwards; positive values force live mode.
	Since int64
}

type LeaderboardEntry struct {
	Address     string          `json:"address"`
	TotalDrops  int64           `json:"totalDrops"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Count       int64           `json:"count"`
	LastSeen    time.Time       `json:"lastSeen"`
}

type LeaderboardResult struct {
	Address   string             `json:"address"`
	Entries   []LeaderboardEntry `json:"leaderboard"`
	Source    string             `json:"source"`
	Fetched   int                `json:"fetchedTxs"`
	Truncated bool               `json:"truncated"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// ClampTop bounds a requested leaderboard size to [1, 200].
func ClampTop(top int) int {
	if top < 1 {
		return 1
	}
	if top > MaxLeaderboardTop {
		return MaxLeaderboardTop
	}
	return top
}

func (s *PresaleService) Leaderboard(ctx context.Context, opts LeaderboardOptions) (LeaderboardResult, error) {
	dest, err := s.destination("")
	if err != nil {
		return LeaderboardResult{}, err
	}
	if opts.Since < 0 {
		return LeaderboardResult{}, invalid(CodeInvalidSince, "since must be a ledger index, got %d", opts.Since)
	}
	top := ClampTop(opts.Top)

	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	if mode == "" {
		mode = ModeLive
		if s.Flags.IsEnabled(ctx, FeatureDurableBoard, false) {
			mode = ModeDurable
		}
	}
	if mode == ModeDurable && opts.Since == 0 {
		res, err := s.durableLeaderboard(ctx, dest, top)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.SourceFetches.WithLabelValues("leaderboard", SourceAggregates, outcome).Inc()
		if err == nil {
			return res, nil
		}
		if s.Logger != nil {
			s.Logger.Debug("durable leaderboard unavailable, replaying", zap.String("address", dest), zap.Error(err))
		}
	}

	start := s.Presale.StartLedger
	if opts.Since > start {
		start = opts.Since
	}
	pages := opts.Pages
	if pages > MaxExplorerPages {
		pages = MaxExplorerPages
	}
	res, err := s.chain(ctx, "leaderboard", false).FetchPayments(ctx, dest, source.FetchOptions{
		StartLedger: start,
		MaxPages:    pages,
	})
	if err != nil {
		return LeaderboardResult{}, err
	}
	return LeaderboardResult{
		Address:   dest,
		Entries:   rankSenders(res.Payments, top),
		Source:    res.Source,
		Fetched:   res.Fetched,
		Truncated: res.Truncated,
		UpdatedAt: s.now(),
	}, nil
}

// durableLeaderboard reads the sender ranking kept by ingestion. It fails
// with errEmptyAggregates until a run has committed a cursor and a sender.
func (s *PresaleService) durableLeaderboard(ctx context.Context, dest string, top int) (LeaderboardResult, error) {
	if s.Aggregates == nil {
		return LeaderboardResult{}, upstream(SourceAggregates, errNoAggregates)
	}
	cur, err := s.Aggregates.Cursor(ctx)
	if err != nil {
		return LeaderboardResult{}, upstream(SourceAggregates, err)
	}
	if cur.LedgerSequence == 0 {
		return LeaderboardResult{}, errEmptyAggregates
	}
	rows, err := s.Aggregates.Leaderboard(ctx, top)
	if err != nil {
		return LeaderboardResult{}, upstream(SourceAggregates, err)
	}
	if len(rows) == 0 {
		return LeaderboardResult{}, errEmptyAggregates
	}
	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, entryFromAggregate(r))
	}
	updated := cur.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	return LeaderboardResult{
		Address:   dest,
		Entries:   entries,
		Source:    SourceAggregates,
		UpdatedAt: updated,
	}, nil
}

// rankSenders folds payments per sender in first-seen order and sorts by
// total drops, descending. Ties keep first-seen order.
func rankSenders(payments []models.PaymentEvent, top int) []LeaderboardEntry {
	index := map[string]int{}
	entries := []LeaderboardEntry{}
	for _, p := range payments {
		i, ok := index[p.From]
		if !ok {
			i = len(entries)
			index[p.From] = i
			entries = append(entries, LeaderboardEntry{Address: p.From})
		}
		e := &entries[i]
		e.TotalDrops += p.Drops
		e.Count++
		if p.Timestamp.After(e.LastSeen) {
			e.LastSeen = p.Timestamp
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalDrops > entries[j].TotalDrops
	})
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}
	for i := range entries {
		entries[i].TotalAmount = ledger.DropsToXRP(entries[i].TotalDrops)
	}
	return entries
}

func entryFromAggregate(a models.SenderAggregate) LeaderboardEntry {
	return LeaderboardEntry{
		Address:     a.Address,
		TotalDrops:  a.TotalDrops,
		TotalAmount: a.TotalAmount,
		Count:       a.Count,
		LastSeen:    a.LastSeen,
	}
}
