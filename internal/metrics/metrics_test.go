package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordIntervention(t *testing.T) {
	before := testutil.ToFloat64(interventionsFired.WithLabelValues("crisis_hotline"))
	skippedBefore := testutil.ToFloat64(interventionsSkipped.WithLabelValues("crisis_hotline"))

	RecordIntervention("crisis_hotline", true)
	RecordIntervention("crisis_hotline", false)
	RecordIntervention("crisis_hotline", false)

	assert.Equal(t, before+1, testutil.ToFloat64(interventionsFired.WithLabelValues("crisis_hotline")))
	assert.Equal(t, skippedBefore+2, testutil.ToFloat64(interventionsSkipped.WithLabelValues("crisis_hotline")))
}

func TestRecordSweep(t *testing.T) {
	before := testutil.ToFloat64(sweepCouples.WithLabelValues("failed"))

	RecordSweep("completed", 10, 2, 3*time.Second)

	assert.Equal(t, before+2, testutil.ToFloat64(sweepCouples.WithLabelValues("failed")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordScore("high")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "couplecare_crisis_scores_computed_total")
}
