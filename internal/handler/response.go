package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"presale/internal/service"
)

const publicCache = "public, s-maxage=60, stale-while-revalidate=600"

// Ok writes {"ok": true, ...fields}.
func Ok(c *gin.Context, fields gin.H) {
	body := gin.H{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Error writes {"ok": false, "error": code, "detail": detail}.
func Error(c *gin.Context, status int, code, detail string) {
	body := gin.H{"ok": false, "error": code}
	if detail != "" {
		body["detail"] = detail
	}
	c.AbortWithStatusJSON(status, body)
}

// writeServiceError maps the service error taxonomy onto status codes.
func writeServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var ve *service.ValidationError
	var ue *service.UpstreamError
	switch {
	case errors.As(err, &ve):
		Error(c, http.StatusBadRequest, ve.Code, ve.Detail)
	case errors.Is(err, service.ErrUnauthorized):
		Error(c, http.StatusUnauthorized, "unauthorized", "")
	case errors.Is(err, service.ErrNotInSnapshot):
		Error(c, http.StatusNotFound, "not_in_snapshot", "")
	case errors.Is(err, service.ErrNotFound):
		Error(c, http.StatusNotFound, "not_found", "")
	case errors.Is(err, service.ErrIngestInProgress):
		Error(c, http.StatusConflict, "ingest_in_progress", "")
	case errors.Is(err, service.ErrNoTrustline):
		Error(c, http.StatusBadRequest, "no_trustline", "")
	case errors.Is(err, service.ErrAllSourcesFailed):
		Error(c, http.StatusBadGateway, "both_sources_failed", "")
	case errors.As(err, &ue):
		if logger != nil {
			logger.Warn("upstream failure", zap.String("source", ue.Source), zap.Error(ue.Err))
		}
		Error(c, http.StatusBadGateway, "upstream_unavailable", ue.Source)
	default:
		if logger != nil {
			logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, "server_error", "")
	}
}

// num renders a decimal as a JSON number without going through float64.
func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func int64Query(c *gin.Context, key string, def int64) int64 {
	if val := c.Query(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return def
}
