package httpapi

import (
	"net/http"
	"time"

	"couplecare-crisis/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const apiBase = "/crisis/api/v1"

// RouterConfig handlers mounted by NewRouter; a nil handler leaves its routes out
type RouterConfig struct {
	Crisis       *CrisisHandler
	CoolingOff   *CoolingOffHandler
	SafetyChecks *SafetyCheckHandler
	Hotlines     *HotlineHandler
	Sweep        *SweepHandler
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.GinMiddleware(), requestLogger(cfg.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, Ok(gin.H{"status": "ok"}))
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group(apiBase)

	if h := cfg.Crisis; h != nil {
		api.POST("/couples/:coupleId/score", h.Recompute)
		api.GET("/couples/:coupleId/score/latest", h.LatestScore)
		api.GET("/couples/:coupleId/scores", h.ScoreHistory)
		api.GET("/couples/:coupleId/scores/export", h.ExportScores)
		api.GET("/couples/:coupleId/interventions", h.ListInterventions)
		api.PUT("/interventions/:interventionId/acknowledge", h.AcknowledgeIntervention)
	}

	if h := cfg.CoolingOff; h != nil {
		api.GET("/couples/:coupleId/cooling-off", h.Get)
		api.POST("/couples/:coupleId/cooling-off", h.Start)
		api.PUT("/cooling-off/:periodId/end", h.End)
		api.PUT("/cooling-off/:periodId/cancel", h.Cancel)
	}

	if h := cfg.SafetyChecks; h != nil {
		api.GET("/users/:userId/safety-checks/pending", h.Pending)
		api.PUT("/safety-checks/:checkId/respond", h.Respond)
	}

	if h := cfg.Hotlines; h != nil {
		api.GET("/hotlines", h.List)
	}

	if h := cfg.Sweep; h != nil {
		api.POST("/sweep", h.Trigger)
		api.GET("/sweep/last", h.Last)
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
