package api

import (
	"net/http"
	"strconv"

	"aigateway/internal/middleware"
	"aigateway/internal/quota"
	"aigateway/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type trackUsageRequest struct {
	UserID      uint   `json:"user_id"`
	RequestType string `json:"request_type" binding:"required"`
	ResourceID  string `json:"resource_id"`
	Model       string `json:"model" binding:"required"`
	TokensIn    int64  `json:"tokens_in"`
	TokensOut   int64  `json:"tokens_out"`
	DurationMS  int64  `json:"duration_ms"`
	Endpoint    string `json:"endpoint"`
	Success     *bool  `json:"success" binding:"required"`
	Error       string `json:"error"`
}

type checkQuotaRequest struct {
	UserID       uint   `json:"user_id"`
	TokensNeeded int64  `json:"tokens_needed" binding:"required"`
	Model        string `json:"model"`
}

// GetQuotaHandler returns the caller's quota row, lazily provisioning tier
// defaults on first access. A brand-new user gets 200 with zero counters,
// never 404.
func (h *Handler) GetQuotaHandler(c *gin.Context) {
	target, tier, ok := h.usageTarget(c)
	if !ok {
		return
	}
	q, err := h.ledger.GetUserQuota(target, tier)
	if err != nil {
		h.logger.Error("Failed to fetch quota", "user_id", target, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to fetch quota")
		return
	}
	response.OK(c, http.StatusOK, q)
}

// GetSummaryHandler aggregates usage over daily, monthly, or all_time.
func (h *Handler) GetSummaryHandler(c *gin.Context) {
	target, _, ok := h.usageTarget(c)
	if !ok {
		return
	}
	summary, err := h.ledger.Summarize(target, c.DefaultQuery("period", "all_time"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	response.OK(c, http.StatusOK, summary)
}

// GetDashboardHandler composes quota plus daily and monthly summaries.
func (h *Handler) GetDashboardHandler(c *gin.Context) {
	target, tier, ok := h.usageTarget(c)
	if !ok {
		return
	}
	dashboard, err := h.ledger.GetDashboard(target, tier)
	if err != nil {
		h.logger.Error("Failed to build dashboard", "user_id", target, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to build dashboard")
		return
	}
	response.OK(c, http.StatusOK, dashboard)
}

// TrackUsageHandler appends a usage event. The audit row is always written;
// quota counters move only for successful events.
func (h *Handler) TrackUsageHandler(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}
	var req trackUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, "request_type, model, and success are required")
		return
	}

	target := caller.ID
	if req.UserID != 0 && req.UserID != caller.ID {
		if !caller.IsAdmin() {
			response.Fail(c, http.StatusForbidden, response.CodeForbidden, "cannot track usage for another user")
			return
		}
		target = req.UserID
	}

	event := quota.Event{
		UserID:      target,
		RequestID:   uuid.NewString(),
		RequestType: req.RequestType,
		ResourceID:  req.ResourceID,
		Model:       req.Model,
		TokensIn:    req.TokensIn,
		TokensOut:   req.TokensOut,
		DurationMS:  req.DurationMS,
		Endpoint:    req.Endpoint,
		Success:     *req.Success,
		Error:       req.Error,
	}
	if err := h.ledger.TrackUsage(event); err != nil {
		h.logger.Error("Failed to track usage", "user_id", target, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to track usage")
		return
	}
	response.OK(c, http.StatusOK, gin.H{"request_id": event.RequestID})
}

// CheckQuotaHandler answers whether the user may spend tokens_needed more
// tokens. It is a pure read plus any due lazy reset.
func (h *Handler) CheckQuotaHandler(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}
	var req checkQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, "tokens_needed is required")
		return
	}

	target := caller.ID
	if req.UserID != 0 && req.UserID != caller.ID {
		if !caller.IsAdmin() {
			response.Fail(c, http.StatusForbidden, response.CodeForbidden, "cannot check quota for another user")
			return
		}
		target = req.UserID
	}

	allowed := h.ledger.CheckQuota(target, req.TokensNeeded, req.Model)
	response.OK(c, http.StatusOK, gin.H{"allowed": allowed})
}

// usageTarget resolves which user a ledger query is about. Non-admins may
// only query themselves.
func (h *Handler) usageTarget(c *gin.Context) (uint, string, bool) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return 0, "", false
	}

	raw := c.Query("user_id")
	if raw == "" {
		return caller.ID, caller.Tier, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, "user_id must be numeric")
		return 0, "", false
	}
	if uint(id) == caller.ID {
		return caller.ID, caller.Tier, true
	}
	if !caller.IsAdmin() {
		response.Fail(c, http.StatusForbidden, response.CodeForbidden, "cannot query another user's usage")
		return 0, "", false
	}

	target, err := h.db.GetUserByID(uint(id))
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.CodeNotFound, "user not found")
		return 0, "", false
	}
	return target.ID, target.Tier, true
}
