package httpapi

import (
	"context"
	"net/http"

	"couplecare-crisis/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CoolingOffActions cooling-off state machine operations
type CoolingOffActions interface {
	Start(ctx context.Context, coupleID, initiatedBy, reason string, durationHours int) (*models.CoolingOffPeriod, error)
	Active(ctx context.Context, coupleID string) (*models.CoolingOffPeriod, error)
	EndEarly(ctx context.Context, periodID, reason string) (*models.CoolingOffPeriod, error)
	Cancel(ctx context.Context, periodID, reason string) (*models.CoolingOffPeriod, error)
}

// CoolingOffHandler cooling-off period endpoints
type CoolingOffHandler struct {
	coolingOff CoolingOffActions
	logger     *zap.Logger
}

// NewCoolingOffHandler creates the cooling-off handler
func NewCoolingOffHandler(coolingOff CoolingOffActions, logger *zap.Logger) *CoolingOffHandler {
	return &CoolingOffHandler{coolingOff: coolingOff, logger: logger}
}

// CoolingOffStatus body of GET /couples/:coupleId/cooling-off
type CoolingOffStatus struct {
	Active bool                     `json:"active"`
	Period *models.CoolingOffPeriod `json:"period"`
}

// Get GET /couples/:coupleId/cooling-off
func (h *CoolingOffHandler) Get(c *gin.Context) {
	period, err := h.coolingOff.Active(c.Request.Context(), c.Param("coupleId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Ok(CoolingOffStatus{Active: period != nil, Period: period}))
}

type startCoolingOffRequest struct {
	InitiatedBy   string `json:"initiated_by" binding:"required"`
	Reason        string `json:"reason"`
	DurationHours int    `json:"duration_hours"`
}

// Start POST /couples/:coupleId/cooling-off
func (h *CoolingOffHandler) Start(c *gin.Context) {
	var req startCoolingOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.DurationHours < 0 {
		badRequest(c, "duration_hours must be positive")
		return
	}

	period, err := h.coolingOff.Start(c.Request.Context(), c.Param("coupleId"), req.InitiatedBy, req.Reason, req.DurationHours)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, Ok(period))
}

type resolveCoolingOffRequest struct {
	Reason string `json:"reason"`
}

// End PUT /cooling-off/:periodId/end
func (h *CoolingOffHandler) End(c *gin.Context) {
	h.resolve(c, h.coolingOff.EndEarly)
}

// Cancel PUT /cooling-off/:periodId/cancel
func (h *CoolingOffHandler) Cancel(c *gin.Context) {
	h.resolve(c, h.coolingOff.Cancel)
}

func (h *CoolingOffHandler) resolve(c *gin.Context, fn func(ctx context.Context, periodID, reason string) (*models.CoolingOffPeriod, error)) {
	var req resolveCoolingOffRequest
	// body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	period, err := fn(c.Request.Context(), c.Param("periodId"), req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Ok(period))
}
