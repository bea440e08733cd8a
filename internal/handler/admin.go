package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"presale/internal/auth"
	"presale/internal/paas"
	"presale/internal/service"
)

// AdminHandler serves the privileged presale routes. Every route requires
// the shared secret.
type AdminHandler struct {
	Ingest   *service.IngestService
	Snapshot *service.SnapshotService
	Settings *service.SystemSettingsService
	Secret   string
	Logger   *zap.Logger
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/api/presale", auth.RequireSecret(h.Secret))
	g.POST("/ingest", h.ingest)
	g.POST("/snapshot", h.snapshot)
	g.GET("/sync-state", h.syncState)
	g.GET("/ingest/runs", h.runs)
	g.GET("/settings/switches", h.listSwitches)
	g.PUT("/settings/switches/:name", h.putSwitch)
}

// @Summary Run one ingestion pass
// @Tags admin
// @Param destination query string false "must match the presale destination when set"
// @Param cutoff query int false "last ledger to include"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/presale/ingest [post]
func (h *AdminHandler) ingest(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "server_error", "ingest service unavailable")
		return
	}
	res, err := h.Ingest.Ingest(c.Request.Context(), service.IngestOptions{
		Destination:  c.Query("destination"),
		CutoffLedger: int64Query(c, "cutoff", 0),
	})
	if err != nil {
		paas.LogBestEffortCtx(c.Request.Context(), "presale_ingest_http", "error", map[string]any{"error": err.Error()})
		writeServiceError(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{
		"runId":          res.RunID,
		"destination":    res.Destination,
		"processedCount": res.ProcessedCount,
		"processedDrops": res.ProcessedDrops,
		"duplicates":     res.Duplicates,
		"skipped":        res.Skipped,
		"skipCounts":     res.SkipCounts,
		"pages":          res.Pages,
		"seen":           res.Seen,
		"previousCursor": res.PreviousCursor,
		"newCursor":      res.NewCursor,
		"truncated":      res.Truncated,
	})
}

type snapshotRequest struct {
	Addresses map[string]decimal.Decimal `json:"addresses"`
}

// @Summary Finalize the allocation snapshot
// @Tags admin
// @Param body body snapshotRequest false "address to contributed amount; omit to use the durable aggregates"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/presale/snapshot [post]
func (h *AdminHandler) snapshot(c *gin.Context) {
	if h.Snapshot == nil {
		Error(c, http.StatusInternalServerError, "server_error", "snapshot service unavailable")
		return
	}
	var req snapshotRequest
	raw, err := c.GetRawData()
	if err != nil {
		Error(c, http.StatusBadRequest, service.CodeInvalidBody, err.Error())
		return
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			Error(c, http.StatusBadRequest, service.CodeInvalidBody, err.Error())
			return
		}
	}
	ctx := c.Request.Context()
	var rate, total decimal.Decimal
	var count int
	if req.Addresses == nil {
		rec, ferr := h.Snapshot.FinalizeFromAggregates(ctx)
		rate, total, count, err = rec.Rate, rec.TotalContributed, len(rec.Allocations), ferr
	} else {
		rec, ferr := h.Snapshot.FinalizeSnapshot(ctx, req.Addresses)
		rate, total, count, err = rec.Rate, rec.TotalContributed, len(rec.Allocations), ferr
	}
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	paas.LogBestEffortCtx(ctx, "presale_snapshot", "info", map[string]any{
		"rate":  rate.String(),
		"total": total.String(),
		"count": count,
	})
	Ok(c, gin.H{"rate": num(rate), "totalContributed": num(total), "count": count})
}

// @Summary Journal sync state per destination
// @Tags admin
// @Success 200 {object} map[string]interface{}
// @Router /api/presale/sync-state [get]
func (h *AdminHandler) syncState(c *gin.Context) {
	states, err := h.Ingest.SyncStates(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"states": states})
}

// @Summary Newest journaled ingestion runs
// @Tags admin
// @Param limit query int false "rows to return" default(20)
// @Success 200 {object} map[string]interface{}
// @Router /api/presale/ingest/runs [get]
func (h *AdminHandler) runs(c *gin.Context) {
	runs, err := h.Ingest.RecentRuns(c.Request.Context(), clamp(intQuery(c, "limit", 20), 1, 200))
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"runs": runs})
}

// @Summary Feature switches
// @Tags admin
// @Success 200 {object} map[string]interface{}
// @Router /api/presale/settings/switches [get]
func (h *AdminHandler) listSwitches(c *gin.Context) {
	Ok(c, gin.H{"switches": h.Settings.Switches(c.Request.Context())})
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Toggle a feature switch
// @Tags admin
// @Param name path string true "switch name without the feature. prefix"
// @Param body body putSwitchRequest true "new value"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/presale/settings/switches/{name} [put]
func (h *AdminHandler) putSwitch(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	key := "feature." + name
	if _, known := service.DefaultFeatureSwitches()[key]; !known {
		Error(c, http.StatusNotFound, "not_found", "unknown switch "+name)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, service.CodeInvalidBody, "expected {\"enabled\": bool}")
		return
	}
	if h.Settings == nil || h.Settings.Repo == nil {
		Error(c, http.StatusConflict, "journal_disabled", "switches are read-only without a database")
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"name": name, "key": key, "enabled": *req.Enabled})
}
