package httpapi

import (
	"context"
	"net/http"
	"time"

	"couplecare-crisis/internal/consumer"
	"couplecare-crisis/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sweeper batch sweep trigger and last summary
type Sweeper interface {
	Sweep(ctx context.Context, asOf time.Time) (*models.SweepSummary, error)
	LastSummary(ctx context.Context) (*models.SweepSummary, error)
}

// HotlineLister read-only hotline directory
type HotlineLister interface {
	List(ctx context.Context, country string) ([]*models.CrisisHotline, error)
}

// SweepHandler manual sweep trigger and last summary
type SweepHandler struct {
	sweeper Sweeper
	logger  *zap.Logger
}

// NewSweepHandler creates the sweep handler
func NewSweepHandler(sweeper Sweeper, logger *zap.Logger) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, logger: logger}
}

type triggerSweepRequest struct {
	AsOf string `json:"as_of"` // YYYY-MM-DD, empty means now
}

// Trigger POST /sweep runs a sweep synchronously and returns its summary
func (h *SweepHandler) Trigger(c *gin.Context) {
	var req triggerSweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	var asOf time.Time
	if req.AsOf != "" {
		parsed, err := consumer.ParseAsOf(req.AsOf)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		asOf = parsed
	}

	// the sweep outlives a disconnected client
	summary, err := h.sweeper.Sweep(context.WithoutCancel(c.Request.Context()), asOf)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Ok(summary))
}

// Last GET /sweep/last, null result when no summary is stored
func (h *SweepHandler) Last(c *gin.Context) {
	summary, err := h.sweeper.LastSummary(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Ok(summary))
}

// HotlineHandler crisis hotline directory
type HotlineHandler struct {
	hotlines HotlineLister
	logger   *zap.Logger
}

// NewHotlineHandler creates the hotline handler
func NewHotlineHandler(hotlines HotlineLister, logger *zap.Logger) *HotlineHandler {
	return &HotlineHandler{hotlines: hotlines, logger: logger}
}

// List GET /hotlines?country=
func (h *HotlineHandler) List(c *gin.Context) {
	items, err := h.hotlines.List(c.Request.Context(), c.Query("country"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []*models.CrisisHotline{}
	}
	c.JSON(http.StatusOK, Ok(gin.H{"items": items, "total": len(items)}))
}
