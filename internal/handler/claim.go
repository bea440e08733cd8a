package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presale/internal/service"
)

type ClaimHandler struct {
	Claim  *service.ClaimService
	Logger *zap.Logger
}

func (h *ClaimHandler) Register(r *gin.Engine) {
	g := r.Group("/api/claim")
	g.GET("/preview", h.preview)
	g.POST("/eligibility", h.eligibility)
}

// @Summary Allocation owed to an address
// @Tags claim
// @Param address query string true "classic address"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/claim/preview [get]
func (h *ClaimHandler) preview(c *gin.Context) {
	if h.Claim == nil {
		Error(c, http.StatusInternalServerError, "server_error", "claim service unavailable")
		return
	}
	res, err := h.Claim.PreviewClaim(c.Request.Context(), c.Query("address"))
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"address": res.Address, "amount": res.Amount, "source": res.Source})
}

type eligibilityRequest struct {
	Address string `json:"address"`
}

// @Summary Trust-line pre-check before a claim
// @Tags claim
// @Param body body eligibilityRequest true "claimant"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/claim/eligibility [post]
func (h *ClaimHandler) eligibility(c *gin.Context) {
	if h.Claim == nil {
		Error(c, http.StatusInternalServerError, "server_error", "claim service unavailable")
		return
	}
	var req eligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, service.CodeInvalidBody, "expected {\"address\": string}")
		return
	}
	res, err := h.Claim.ClaimEligibility(c.Request.Context(), req.Address)
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	Ok(c, gin.H{"address": res.Address, "amount": res.Amount, "trustline": res.Trustline})
}
