package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"couplecare-crisis/internal/models"
	"couplecare-crisis/internal/repository"
	"couplecare-crisis/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScoreService score computation and history
type ScoreService interface {
	Recompute(ctx context.Context, coupleID string) (*service.Outcome, error)
	Latest(ctx context.Context, coupleID string) (*models.CrisisScore, error)
	History(ctx context.Context, coupleID string, limit int) ([]*models.CrisisScore, error)
}

// InterventionActions open interventions and their acknowledgement
type InterventionActions interface {
	ListOpen(ctx context.Context, coupleID string) ([]*models.CrisisIntervention, error)
	Acknowledge(ctx context.Context, interventionID string, action models.ActionTaken, userID string) (*service.AcknowledgeResult, error)
}

// CrisisHandler score, history, export and intervention endpoints
type CrisisHandler struct {
	scores        ScoreService
	interventions InterventionActions
	logger        *zap.Logger
}

// NewCrisisHandler creates the crisis handler
func NewCrisisHandler(scores ScoreService, interventions InterventionActions, logger *zap.Logger) *CrisisHandler {
	return &CrisisHandler{scores: scores, interventions: interventions, logger: logger}
}

// RecomputeResponse body of POST /couples/:coupleId/score
type RecomputeResponse struct {
	Score         *models.CrisisScore          `json:"score"`
	Signals       models.SignalSnapshot        `json:"signals"`
	Interventions []*models.CrisisIntervention `json:"interventions"`
	SafetyChecks  []*models.SafetyCheck        `json:"safety_checks"`
}

// Recompute POST /couples/:coupleId/score
func (h *CrisisHandler) Recompute(c *gin.Context) {
	coupleID := c.Param("coupleId")
	ctx := c.Request.Context()

	outcome, err := h.scores.Recompute(ctx, coupleID)
	if err != nil && outcome == nil {
		if errors.Is(err, models.ErrRetryable) {
			h.logger.Warn("Recompute failed, serving last known score",
				zap.String("couple_id", coupleID),
				zap.Error(err),
			)
			latest, latestErr := h.scores.Latest(ctx, coupleID)
			if latestErr != nil {
				latest = nil
			}
			c.JSON(http.StatusServiceUnavailable, FailWith("crisis score temporarily unavailable", gin.H{"latest_score": latest}))
			return
		}
		writeError(c, h.logger, err)
		return
	}
	if err != nil {
		// score is recorded; some interventions failed and will be retried next run
		h.logger.Warn("Recompute completed with intervention failures",
			zap.String("couple_id", coupleID),
			zap.Error(err),
		)
	}

	resp := RecomputeResponse{
		Score:         outcome.Score,
		Signals:       outcome.Signals,
		Interventions: outcome.Fired,
		SafetyChecks:  outcome.SafetyChecks,
	}
	if resp.Interventions == nil {
		resp.Interventions = []*models.CrisisIntervention{}
	}
	if resp.SafetyChecks == nil {
		resp.SafetyChecks = []*models.SafetyCheck{}
	}
	c.JSON(http.StatusOK, Ok(resp))
}

// LatestScore GET /couples/:coupleId/score/latest, null result when none recorded
func (h *CrisisHandler) LatestScore(c *gin.Context) {
	score, err := h.scores.Latest(c.Request.Context(), c.Param("coupleId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Ok(score))
}

// ScoreHistory GET /couples/:coupleId/scores?limit=
func (h *CrisisHandler) ScoreHistory(c *gin.Context) {
	limit, ok := parseLimit(c, repository.DefaultHistoryLimit)
	if !ok {
		return
	}
	scores, err := h.scores.History(c.Request.Context(), c.Param("coupleId"), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if scores == nil {
		scores = []*models.CrisisScore{}
	}
	c.JSON(http.StatusOK, Ok(gin.H{"items": scores, "total": len(scores)}))
}

// ExportScores GET /couples/:coupleId/scores/export
func (h *CrisisHandler) ExportScores(c *gin.Context) {
	coupleID := c.Param("coupleId")
	limit, ok := parseLimit(c, repository.MaxHistoryLimit)
	if !ok {
		return
	}
	scores, err := h.scores.History(c.Request.Context(), coupleID, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	data, err := GenerateScoreHistoryExport(scores)
	if err != nil {
		h.logger.Error("Failed to generate score export", zap.String("couple_id", coupleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("crisis_scores_%s_%s.xlsx", coupleID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ListInterventions GET /couples/:coupleId/interventions
func (h *CrisisHandler) ListInterventions(c *gin.Context) {
	items, err := h.interventions.ListOpen(c.Request.Context(), c.Param("coupleId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []*models.CrisisIntervention{}
	}
	c.JSON(http.StatusOK, Ok(gin.H{"items": items, "total": len(items)}))
}

type acknowledgeRequest struct {
	Action string `json:"action" binding:"required"`
	UserID string `json:"user_id"`
}

// AcknowledgeIntervention PUT /interventions/:interventionId/acknowledge
func (h *CrisisHandler) AcknowledgeIntervention(c *gin.Context) {
	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	action := models.ActionTaken(req.Action)
	if !action.Valid() || action == models.ActionIgnored {
		badRequest(c, "action must be one of acknowledged, accepted, declined")
		return
	}

	result, err := h.interventions.Acknowledge(c.Request.Context(), c.Param("interventionId"), action, req.UserID)
	if err != nil {
		if result != nil {
			// acknowledgement committed but the follow-up cooling-off start failed
			h.logger.Error("Intervention acknowledged but cooling-off start failed",
				zap.String("intervention_id", c.Param("interventionId")),
				zap.Error(err),
			)
			c.JSON(http.StatusOK, Ok(result))
			return
		}
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Ok(result))
}

// parseLimit reads ?limit=, writing a 400 when it is not a positive integer
func parseLimit(c *gin.Context, defaultLimit int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}
