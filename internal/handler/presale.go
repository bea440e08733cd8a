package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presale/internal/service"
)

type PresaleHandler struct {
	Presale *service.PresaleService
	Logger  *zap.Logger
}

func (h *PresaleHandler) Register(r *gin.Engine) {
	g := r.Group("/api/presale")
	g.GET("/leaderboard", h.leaderboard)
	g.GET("/raised", h.raised)
	g.GET("/summary", h.summary)
	g.GET("/recent", h.recent)
	g.GET("/tx/:hash", h.tx)
}

func (h *PresaleHandler) ready(c *gin.Context) bool {
	if h.Presale == nil {
		Error(c, http.StatusInternalServerError, "server_error", "presale service unavailable")
		return false
	}
	return true
}

// @Summary Contributor leaderboard
// @Tags presale
// @Param top query int false "entries to return (1-200)" default(25)
// @Param mode query string false "live or durable"
// @Param pages query int false "explorer fallback page cap (1-200)"
// @Param since query int false "first ledger to replay from; forces live mode"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /api/presale/leaderboard [get]
func (h *PresaleHandler) leaderboard(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	opts := service.LeaderboardOptions{
		Top:   service.ClampTop(intQuery(c, "top", service.DefaultLeaderboardTop)),
		Mode:  strings.ToLower(strings.TrimSpace(c.Query("mode"))),
		Since: int64Query(c, "since", 0),
	}
	if opts.Mode != "" && opts.Mode != service.ModeLive && opts.Mode != service.ModeDurable {
		Error(c, http.StatusBadRequest, "invalid_mode", "mode must be live or durable")
		return
	}
	if pages := intQuery(c, "pages", 0); pages != 0 {
		opts.Pages = clamp(pages, 1, service.MaxExplorerPages)
	}
	res, err := h.Presale.Leaderboard(c.Request.Context(), opts)
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	c.Header("Cache-Control", publicCache)
	Ok(c, gin.H{
		"address":     res.Address,
		"leaderboard": entryViews(res.Entries),
		"source":      res.Source,
		"fetchedTxs":  res.Fetched,
		"truncated":   res.Truncated,
		"updatedAt":   res.UpdatedAt,
	})
}

// @Summary Total raised into an address
// @Tags presale
// @Param address query string false "classic address; defaults to the presale destination"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/presale/raised [get]
func (h *PresaleHandler) raised(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	res, err := h.Presale.Raised(c.Request.Context(), c.Query("address"))
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	c.Header("Cache-Control", publicCache)
	Ok(c, gin.H{
		"address":     res.Address,
		"totalDrops":  res.TotalDrops,
		"totalAmount": num(res.TotalAmount),
		"liveBalance": num(res.LiveBalance),
		"eventCount":  res.EventCount,
		"events":      paymentViews(res.Events),
		"source":      res.Source,
		"partial":     res.Partial,
	})
}

// @Summary Progress towards the presale target
// @Tags presale
// @Success 200 {object} map[string]interface{}
// @Router /api/presale/summary [get]
func (h *PresaleHandler) summary(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	res, err := h.Presale.Summary(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	c.Header("Cache-Control", publicCache)
	Ok(c, gin.H{
		"address":     res.Address,
		"totalDrops":  res.TotalDrops,
		"totalAmount": num(res.TotalAmount),
		"liveBalance": num(res.LiveBalance),
		"target":      num(res.Target),
		"percent":     num(res.Percent),
		"source":      res.Source,
		"partial":     res.Partial,
		"updatedAt":   res.UpdatedAt,
	})
}

// @Summary Newest contributions
// @Tags presale
// @Param limit query int false "rows to return (1-100)" default(10)
// @Success 200 {object} map[string]interface{}
// @Router /api/presale/recent [get]
func (h *PresaleHandler) recent(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	res, err := h.Presale.Recent(c.Request.Context(), intQuery(c, "limit", service.DefaultRecentLimit))
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	c.Header("Cache-Control", publicCache)
	Ok(c, gin.H{"recent": recentViews(res.Recent), "source": res.Source})
}

// @Summary Look a transaction up by hash
// @Tags presale
// @Param hash path string true "64 hex characters"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/presale/tx/{hash} [get]
func (h *PresaleHandler) tx(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	res, err := h.Presale.Tx(c.Request.Context(), c.Param("hash"))
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	if res.Validated {
		c.Header("Cache-Control", publicCache)
	}
	Ok(c, txBody(res))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
