package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the crisis service collectors.
	Registry = prometheus.NewRegistry()

	scoresComputed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couplecare",
			Subsystem: "crisis",
			Name:      "scores_computed_total",
			Help:      "Crisis scores recorded, by severity.",
		},
		[]string{"severity"},
	)

	pipelineFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couplecare",
			Subsystem: "crisis",
			Name:      "pipeline_failures_total",
			Help:      "Pipeline runs that failed, by stage.",
		},
		[]string{"stage"},
	)

	interventionsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couplecare",
			Subsystem: "crisis",
			Name:      "interventions_fired_total",
			Help:      "Interventions newly inserted, by type.",
		},
		[]string{"type"},
	)

	interventionsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couplecare",
			Subsystem: "crisis",
			Name:      "interventions_skipped_total",
			Help:      "Interventions not inserted because one was already open, by type.",
		},
		[]string{"type"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couplecare",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Batch sweeps, by result (completed, skipped, failed).",
		},
		[]string{"result"},
	)

	sweepCouples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couplecare",
			Subsystem: "sweep",
			Name:      "couples_total",
			Help:      "Couples processed by sweeps, by outcome.",
		},
		[]string{"outcome"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "couplecare",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of batch sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "couplecare",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "couplecare",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		scoresComputed,
		pipelineFailures,
		interventionsFired,
		interventionsSkipped,
		sweepRuns,
		sweepCouples,
		sweepDuration,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordScore counts a recorded score.
func RecordScore(severity string) {
	scoresComputed.WithLabelValues(severity).Inc()
}

// RecordPipelineFailure counts a failed pipeline stage (aggregate, record, apply).
func RecordPipelineFailure(stage string) {
	pipelineFailures.WithLabelValues(stage).Inc()
}

// RecordIntervention counts an intervention decision; fired=false means already open.
func RecordIntervention(interventionType string, fired bool) {
	if fired {
		interventionsFired.WithLabelValues(interventionType).Inc()
		return
	}
	interventionsSkipped.WithLabelValues(interventionType).Inc()
}

// RecordSweep records one sweep run.
func RecordSweep(result string, processed, failed int, duration time.Duration) {
	sweepRuns.WithLabelValues(result).Inc()
	if processed > 0 {
		sweepCouples.WithLabelValues("processed").Add(float64(processed))
	}
	if failed > 0 {
		sweepCouples.WithLabelValues("failed").Add(float64(failed))
	}
	if duration > 0 {
		sweepDuration.Observe(duration.Seconds())
	}
}

// GinMiddleware records request counts and latency by route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
