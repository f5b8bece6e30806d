package httpapi

import (
	"context"
	"net/http"

	"couplecare-crisis/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SafetyCheckActions safety check workflow
type SafetyCheckActions interface {
	PendingFor(ctx context.Context, userID string) ([]*models.SafetyCheck, error)
	Respond(ctx context.Context, checkID, response string, requiresEscalation bool) (*models.SafetyCheck, error)
}

// SafetyCheckHandler safety check endpoints
type SafetyCheckHandler struct {
	checks SafetyCheckActions
	logger *zap.Logger
}

// NewSafetyCheckHandler creates the safety check handler
func NewSafetyCheckHandler(checks SafetyCheckActions, logger *zap.Logger) *SafetyCheckHandler {
	return &SafetyCheckHandler{checks: checks, logger: logger}
}

// Pending GET /users/:userId/safety-checks/pending
func (h *SafetyCheckHandler) Pending(c *gin.Context) {
	items, err := h.checks.PendingFor(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []*models.SafetyCheck{}
	}
	c.JSON(http.StatusOK, Ok(gin.H{"items": items, "total": len(items)}))
}

type respondRequest struct {
	Response           string `json:"response" binding:"required"`
	RequiresEscalation bool   `json:"requires_escalation"`
}

// Respond PUT /safety-checks/:checkId/respond
func (h *SafetyCheckHandler) Respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	check, err := h.checks.Respond(c.Request.Context(), c.Param("checkId"), req.Response, req.RequiresEscalation)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Ok(check))
}
