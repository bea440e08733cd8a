package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"presale/internal/aggregate"
	"presale/internal/config"
	"presale/internal/ledger"
	"presale/internal/metrics"
	"presale/internal/models"
	"presale/internal/paas"
	"presale/internal/repository"
	"presale/internal/source"
)

// IngestService scans the destination's history and folds new payments into
// the KV aggregates. Runs for one destination are serialized by a lease.
type IngestService struct {
	Aggregates *aggregate.Store
	Ledger     source.LedgerQuerier
	Repo       repository.Repository
	Logger     *zap.Logger
	Presale    config.PresaleConfig
	Config     config.IngestConfig
	Now        func() time.Time
}

type IngestOptions struct {
	Destination  string
	CutoffLedger int64
}

type IngestResult struct {
	RunID          string         `json:"runId"`
	Destination    string         `json:"destination"`
	ProcessedCount int            `json:"processedCount"`
	ProcessedDrops int64          `json:"processedDrops"`
	Duplicates     int            `json:"duplicates"`
	Skipped        int            `json:"skipped"`
	SkipCounts     map[string]int `json:"skipCounts"`
	Pages          int            `json:"pages"`
	Seen           int            `json:"seen"`
	PreviousCursor int64          `json:"previousCursor"`
	NewCursor      int64          `json:"newCursor"`
	Truncated      bool           `json:"truncated"`
}

func (s *IngestService) Ingest(ctx context.Context, opts IngestOptions) (IngestResult, error) {
	if s == nil || s.Aggregates == nil || s.Ledger == nil {
		return IngestResult{}, errors.New("ingest service not configured")
	}
	dest := strings.TrimSpace(opts.Destination)
	if dest == "" {
		dest = s.Presale.Destination
	}
	if dest == "" {
		return IngestResult{}, invalid(CodeMissingDestination, "no destination configured")
	}
	if !ledger.IsClassicAddress(dest) {
		return IngestResult{}, invalid(CodeBadAddress, "destination %q", dest)
	}
	// Cursor, markers and aggregates are keyed for the configured destination only.
	if s.Presale.Destination != "" && dest != s.Presale.Destination {
		return IngestResult{}, invalid(CodeDestinationMismatch, "destination %q is not the presale destination", dest)
	}
	cutoff := opts.CutoffLedger
	if cutoff <= 0 {
		cutoff = s.Presale.CutoffLedger
	}

	runID := uuid.NewString()
	lease, err := s.Aggregates.AcquireLease(ctx, dest, runID, s.Config.LockTTL)
	if err != nil {
		return IngestResult{}, fmt.Errorf("acquire ingest lease: %w", err)
	}
	if lease == nil {
		return IngestResult{}, ErrIngestInProgress
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil && s.Logger != nil {
			s.Logger.Warn("release ingest lease failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()

	start := s.now()
	cursor, err := s.Aggregates.Cursor(ctx)
	if err != nil {
		return IngestResult{}, err
	}
	result := IngestResult{
		RunID:          runID,
		Destination:    dest,
		SkipCounts:     map[string]int{},
		PreviousCursor: cursor.LedgerSequence,
		NewCursor:      cursor.LedgerSequence,
	}
	run := &models.IngestRun{
		ID:           runID,
		Destination:  dest,
		CursorBefore: cursor.LedgerSequence,
		CursorAfter:  cursor.LedgerSequence,
		Status:       models.IngestRunRunning,
		StartedAt:    start,
	}
	s.journalStart(ctx, run)

	highest, err := s.scan(ctx, dest, cursor.LedgerSequence, cutoff, start, &result)
	if err == nil {
		err = s.advance(ctx, highest, &result)
	}
	s.finish(ctx, run, &result, err, start)
	return result, err
}

// scan pages account_tx forward from cursor+1 and applies every eligible
// payment. It returns the highest ledger index among the records seen.
func (s *IngestService) scan(ctx context.Context, dest string, cursor, cutoff int64, now time.Time, result *IngestResult) (int64, error) {
	minLedger := cursor + 1
	if cursor == 0 && s.Presale.StartLedger > 0 {
		minLedger = s.Presale.StartLedger
	}
	maxLedger := int64(-1)
	if cutoff > 0 {
		if minLedger > cutoff {
			return cursor, nil
		}
		maxLedger = cutoff
	}
	pageLimit := s.Config.PageLimit
	if pageLimit <= 0 {
		pageLimit = 200
	}
	maxPages := s.Config.MaxPages
	if maxPages <= 0 {
		maxPages = 1000
	}

	highest := cursor
	req := ledger.AccountTxRequest{
		Account:        dest,
		LedgerIndexMin: minLedger,
		LedgerIndexMax: maxLedger,
		Forward:        true,
		Limit:          pageLimit,
	}
	for {
		if result.Pages >= maxPages {
			result.Truncated = true
			return highest, nil
		}
		page, err := s.Ledger.AccountTx(ctx, req)
		if err != nil {
			return highest, upstream(source.NameLedger, fmt.Errorf("account_tx page %d: %w", result.Pages+1, err))
		}
		result.Pages++
		for _, tx := range page.Transactions {
			result.Seen++
			if tx.LedgerIndex > highest {
				highest = tx.LedgerIndex
			}
			if err := s.applyOne(ctx, tx, dest, now, result); err != nil {
				return highest, err
			}
		}
		if page.Marker == nil {
			return highest, nil
		}
		req.Marker = page.Marker
	}
}

func (s *IngestService) applyOne(ctx context.Context, tx ledger.Transaction, dest string, now time.Time, result *IngestResult) error {
	ev, reason := ledger.NormalizePayment(tx, dest, now)
	if reason != ledger.SkipNone {
		result.Skipped++
		result.SkipCounts[string(reason)]++
		metrics.IngestRecords.WithLabelValues(string(reason)).Inc()
		return nil
	}
	fresh, err := s.Aggregates.ClaimPayment(ctx, ev)
	if err != nil {
		return err
	}
	if !fresh {
		result.Duplicates++
		metrics.IngestRecords.WithLabelValues("duplicate").Inc()
		return nil
	}
	if err := s.Aggregates.ApplyPayment(ctx, ev); err != nil {
		// Nothing was written yet, so the payment can be retried by the next run.
		if !errors.Is(err, aggregate.ErrPartialApply) {
			if rerr := s.Aggregates.ReleasePayment(context.WithoutCancel(ctx), ev.Hash); rerr != nil && s.Logger != nil {
				s.Logger.Warn("release payment marker failed", zap.String("hash", ev.Hash), zap.Error(rerr))
			}
		}
		return err
	}
	result.ProcessedCount++
	result.ProcessedDrops += ev.Drops
	metrics.IngestRecords.WithLabelValues("applied").Inc()
	metrics.ContributedDrops.Add(float64(ev.Drops))
	return nil
}

// advance writes the cursor after a complete scan. A truncated scan may have
// stopped inside the newest ledger, so it only commits the ledger before it.
func (s *IngestService) advance(ctx context.Context, highest int64, result *IngestResult) error {
	target := highest
	if result.Truncated {
		target = highest - 1
	}
	if target <= result.PreviousCursor {
		if result.Truncated && s.Logger != nil {
			s.Logger.Warn("ingest truncated without cursor progress",
				zap.String("run_id", result.RunID),
				zap.Int64("cursor", result.PreviousCursor),
				zap.Int("pages", result.Pages))
		}
		return nil
	}
	wrote, err := s.Aggregates.AdvanceCursor(ctx, target, s.now())
	if err != nil {
		return err
	}
	if wrote {
		result.NewCursor = target
	}
	return nil
}

func (s *IngestService) finish(ctx context.Context, run *models.IngestRun, result *IngestResult, runErr error, start time.Time) {
	end := s.now()
	status := models.IngestRunSucceeded
	switch {
	case runErr != nil:
		status = models.IngestRunFailed
	case result.Truncated:
		status = models.IngestRunTruncated
	}
	metrics.IngestRuns.WithLabelValues(status).Inc()
	metrics.IngestDuration.Observe(end.Sub(start).Seconds())
	metrics.IngestCursor.Set(float64(result.NewCursor))

	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.String("destination", result.Destination),
		zap.String("status", status),
		zap.Int("pages", result.Pages),
		zap.Int("seen", result.Seen),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("skipped", result.Skipped),
		zap.Int64("cursor_before", result.PreviousCursor),
		zap.Int64("cursor", result.NewCursor),
	}
	if s.Logger != nil {
		if runErr != nil {
			s.Logger.Warn("ingest run failed", append(fields, zap.Error(runErr))...)
		} else {
			s.Logger.Info("ingest run finished", fields...)
		}
	}

	bg := context.WithoutCancel(ctx)
	run.CursorAfter = result.NewCursor
	run.Pages = result.Pages
	run.Seen = result.Seen
	run.Processed = result.ProcessedCount
	run.Duplicates = result.Duplicates
	run.Skipped = result.Skipped
	run.Status = status
	run.SkipCounts = statsJSON(result.SkipCounts)
	run.FinishedAt = &end
	if runErr != nil {
		run.Error = strPtr(runErr.Error())
	}
	s.journalFinish(bg, run)
	s.saveSyncState(bg, result, runErr, end)

	level := "info"
	if runErr != nil {
		level = "error"
	}
	paas.LogBestEffortCtx(ctx, "presale_ingest", level, map[string]any{
		"run_id":      result.RunID,
		"destination": result.Destination,
		"status":      status,
		"processed":   result.ProcessedCount,
		"duplicates":  result.Duplicates,
		"cursor":      result.NewCursor,
	})
}

func (s *IngestService) journalStart(ctx context.Context, run *models.IngestRun) {
	if s.Repo == nil {
		return
	}
	if err := s.Repo.InsertIngestRun(ctx, run); err != nil && s.Logger != nil {
		s.Logger.Warn("journal ingest run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *IngestService) journalFinish(ctx context.Context, run *models.IngestRun) {
	if s.Repo == nil {
		return
	}
	if err := s.Repo.FinishIngestRun(ctx, run); err != nil && s.Logger != nil {
		s.Logger.Warn("journal ingest finish failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *IngestService) saveSyncState(ctx context.Context, result *IngestResult, runErr error, at time.Time) {
	if s.Repo == nil {
		return
	}
	scope := SyncScope(result.Destination)
	state, err := s.Repo.GetSyncState(ctx, scope)
	if err != nil || state == nil {
		state = &models.SyncState{Scope: scope}
	}
	state.LastAttemptAt = &at
	if runErr != nil {
		state.LastError = strPtr(runErr.Error())
	} else {
		state.LastSuccessAt = &at
		state.LastError = nil
		state.Cursor = strPtr(strconv.FormatInt(result.NewCursor, 10))
		state.StatsJSON = statsJSON(map[string]int{
			"pages":      result.Pages,
			"seen":       result.Seen,
			"processed":  result.ProcessedCount,
			"duplicates": result.Duplicates,
			"skipped":    result.Skipped,
		})
	}
	if err := s.Repo.SaveSyncState(ctx, state); err != nil && s.Logger != nil {
		s.Logger.Warn("save sync state failed", zap.String("scope", scope), zap.Error(err))
	}
}

// SyncStates lists the journal's per-destination sync rows.
func (s *IngestService) SyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.Repo == nil {
		return []models.SyncState{}, nil
	}
	return s.Repo.ListSyncStates(ctx)
}

// RecentRuns lists the newest journaled runs.
func (s *IngestService) RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	if s == nil || s.Repo == nil {
		return []models.IngestRun{}, nil
	}
	return s.Repo.ListIngestRuns(ctx, repository.ListIngestRunsParams{Limit: limit})
}

func SyncScope(destination string) string {
	return "ingest:" + destination
}

func (s *IngestService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func statsJSON(stats map[string]int) datatypes.JSON {
	if len(stats) == 0 {
		return datatypes.JSON([]byte("null"))
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(payload)
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
