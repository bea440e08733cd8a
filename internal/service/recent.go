package service

import (
	"context"

	"go.uber.org/zap"

	"presale/internal/models"
	"presale/internal/source"
)

const (
	SourceRecentFeed   = "kv:recent"
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

type RecentResult struct {
	Recent []models.RecentActivityEntry `json:"recent"`
	Source string                       `json:"source"`
}

// Recent returns the newest contributions from the ingested feed, or from the
// data API while the feed is empty or unreadable.
func (s *PresaleService) Recent(ctx context.Context, limit int) (RecentResult, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	if s.Aggregates != nil {
		rows, err := s.Aggregates.Recent(ctx, limit)
		if err == nil && len(rows) > 0 {
			return RecentResult{Recent: rows, Source: SourceRecentFeed}, nil
		}
		if err != nil && s.Logger != nil {
			s.Logger.Warn("recent feed read failed", zap.Error(err))
		}
	}

	dest, err := s.destination("")
	if err != nil {
		return RecentResult{}, err
	}
	if s.DataAPI == nil {
		return RecentResult{Recent: []models.RecentActivityEntry{}, Source: SourceRecentFeed}, nil
	}
	res, err := observed{view: "recent", Source: source.DataAPISource{Client: s.DataAPI, Limit: limit, Now: s.Now}}.
		FetchPayments(ctx, dest, source.FetchOptions{})
	if err != nil {
		return RecentResult{}, upstream(source.NameDataAPI, err)
	}
	out := make([]models.RecentActivityEntry, 0, len(res.Payments))
	for _, p := range res.Payments {
		out = append(out, models.RecentActivityEntry{
			Hash:      p.Hash,
			From:      p.From,
			Amount:    p.Amount,
			Drops:     p.Drops,
			Timestamp: p.Timestamp,
		})
		if len(out) == limit {
			break
		}
	}
	return RecentResult{Recent: out, Source: source.NameDataAPI}, nil
}
