package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"couplecare-crisis/internal/config"
	"couplecare-crisis/internal/evaluator"
	"couplecare-crisis/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticCouples struct {
	ids []string
	err error
}

func (s staticCouples) ListActiveCoupleIDs(context.Context) ([]string, error) {
	return s.ids, s.err
}

type fakeEvaluator struct {
	mu       sync.Mutex
	failFor    map[string]error
	partialFor map[string]error
	panicFor   map[string]bool
	asOf     []time.Time

	inFlight    int32
	maxInFlight int32
	delay       time.Duration
}

func (f *fakeEvaluator) Evaluate(_ context.Context, coupleID string, asOf time.Time) (models.CoupleOutcome, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.asOf = append(f.asOf, asOf)
	f.mu.Unlock()

	if f.panicFor[coupleID] {
		panic("boom")
	}
	if err := f.failFor[coupleID]; err != nil {
		return models.CoupleOutcome{CoupleID: coupleID}, err
	}
	if err := f.partialFor[coupleID]; err != nil {
		return models.CoupleOutcome{
			CoupleID:      coupleID,
			ScoreID:       "score-" + coupleID,
			Score:         80,
			Severity:      models.SeverityCritical,
			Interventions: []models.InterventionType{models.InterventionCrisisHotline},
		}, err
	}
	return models.CoupleOutcome{
		CoupleID:      coupleID,
		Score:         31,
		Severity:      models.SeverityHigh,
		Interventions: []models.InterventionType{models.InterventionAISession},
	}, nil
}

type countingExpirer struct {
	n     int64
	calls int
}

func (c *countingExpirer) ExpireStale(context.Context) (int64, error) {
	c.calls++
	return c.n, nil
}

func (c *countingExpirer) IgnoreExpired(context.Context) (int64, error) {
	c.calls++
	return c.n, nil
}

// memoryExpirer ignores open interventions whose expires_at has passed
type memoryExpirer struct {
	rows  []*models.CrisisIntervention
	now   time.Time
	calls int
}

func (m *memoryExpirer) IgnoreExpired(context.Context) (int64, error) {
	m.calls++
	var n int64
	ignored := models.ActionIgnored
	for _, iv := range m.rows {
		if iv.IsOpen() && iv.ExpiresAt != nil && !iv.ExpiresAt.After(m.now) {
			iv.ActionTaken = &ignored
			n++
		}
	}
	return n, nil
}

func newTestStateManager(t *testing.T) (*StateManager, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStateManager(client, "crisis:sweep:", 30*time.Minute, 48*time.Hour, zap.NewNop()), mr
}

func TestSweep_FailingCoupleIsolated(t *testing.T) {
	eval := &fakeEvaluator{failFor: map[string]error{"A": errors.New("aggregator exploded")}}
	sweep := NewSweepConsumer(staticCouples{ids: []string{"A", "B"}}, eval, nil, nil, nil, 4, zap.NewNop())

	summary, err := sweep.Sweep(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", summary.Date)
	assert.Equal(t, 1, summary.ProcessedCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.PerCouple, 1)
	assert.Equal(t, "B", summary.PerCouple[0].CoupleID)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "A", summary.Failures[0].CoupleID)
	assert.Contains(t, summary.Failures[0].Error, "aggregator exploded")
}

func TestSweep_PanicIsRecordedAsFailure(t *testing.T) {
	eval := &fakeEvaluator{panicFor: map[string]bool{"C": true}}
	sweep := NewSweepConsumer(staticCouples{ids: []string{"A", "B", "C"}}, eval, nil, nil, nil, 2, zap.NewNop())

	summary, err := sweep.Sweep(context.Background(), time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.ProcessedCount)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "C", summary.Failures[0].CoupleID)
	assert.Contains(t, summary.Failures[0].Error, "panic")
}

func TestSweep_BoundedConcurrency(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	eval := &fakeEvaluator{delay: 5 * time.Millisecond}
	sweep := NewSweepConsumer(staticCouples{ids: ids}, eval, nil, nil, nil, 3, zap.NewNop())

	summary, err := sweep.Sweep(context.Background(), time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 20, summary.ProcessedCount)
	assert.LessOrEqual(t, atomic.LoadInt32(&eval.maxInFlight), int32(3))
}

func TestSweep_PassesAsOfToEveryCouple(t *testing.T) {
	asOf := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	eval := &fakeEvaluator{}
	sweep := NewSweepConsumer(staticCouples{ids: []string{"A", "B"}}, eval, nil, nil, nil, 2, zap.NewNop())

	_, err := sweep.Sweep(context.Background(), asOf)

	require.NoError(t, err)
	require.Len(t, eval.asOf, 2)
	for _, got := range eval.asOf {
		assert.Equal(t, asOf, got)
	}
}

func TestSweep_RunsHousekeeping(t *testing.T) {
	coolingOff := &countingExpirer{n: 3}
	interventions := &countingExpirer{}
	sweep := NewSweepConsumer(staticCouples{}, &fakeEvaluator{}, coolingOff, interventions, nil, 1, zap.NewNop())

	summary, err := sweep.Sweep(context.Background(), time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 3, summary.ExpiredPeriods)
	assert.Equal(t, 1, coolingOff.calls)
	assert.Equal(t, 1, interventions.calls)
	assert.Empty(t, summary.PerCouple)
}

func TestSweep_ListFailureAborts(t *testing.T) {
	sweep := NewSweepConsumer(staticCouples{err: errors.New("db down")}, &fakeEvaluator{}, nil, nil, nil, 1, zap.NewNop())

	summary, err := sweep.Sweep(context.Background(), time.Time{})

	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "failed to list active couples")
}

func TestSweep_LeaseHeldElsewhere(t *testing.T) {
	state, mr := newTestStateManager(t)
	require.NoError(t, mr.Set(state.LeaseKey(), "other-replica"))
	eval := &fakeEvaluator{}
	sweep := NewSweepConsumer(staticCouples{ids: []string{"A"}}, eval, nil, nil, state, 1, zap.NewNop())

	summary, err := sweep.Sweep(context.Background(), time.Time{})

	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, ErrSweepInProgress))
	assert.Empty(t, eval.asOf)
}

func TestSweep_StoresSummaryAndReleasesLease(t *testing.T) {
	state, mr := newTestStateManager(t)
	sweep := NewSweepConsumer(staticCouples{ids: []string{"A"}}, &fakeEvaluator{}, nil, nil, state, 1, zap.NewNop())

	_, err := sweep.Sweep(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.False(t, mr.Exists(state.LeaseKey()))

	raw, err := mr.Get(state.SummaryKey())
	require.NoError(t, err)
	var stored models.SweepSummary
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "2026-03-10", stored.Date)
	assert.Equal(t, 1, stored.ProcessedCount)

	last, err := sweep.LastSummary(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "A", last.PerCouple[0].CoupleID)
}

func TestStateManager_ReleaseOnlyOwnLease(t *testing.T) {
	state, mr := newTestStateManager(t)
	ctx := context.Background()

	ok, err := state.AcquireLease(ctx, "me")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = state.AcquireLease(ctx, "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, state.ReleaseLease(ctx, "someone-else"))
	holder, err := state.LeaseHolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me", holder)

	require.NoError(t, state.ReleaseLease(ctx, "me"))
	assert.False(t, mr.Exists(state.LeaseKey()))
}

func TestStateManager_LeaseExpires(t *testing.T) {
	state, mr := newTestStateManager(t)
	ctx := context.Background()

	ok, err := state.AcquireLease(ctx, "me")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Minute)

	ok, err = state.AcquireLease(ctx, "next")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStateManager_NoSummary(t *testing.T) {
	state, _ := newTestStateManager(t)

	summary, err := state.LastSummary(context.Background())

	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	sweep := NewSweepConsumer(staticCouples{}, &fakeEvaluator{}, nil, nil, nil, 1, zap.NewNop())

	_, err := NewScheduler("not a cron", sweep, zap.NewNop())
	assert.Error(t, err)

	s, err := NewScheduler("0 3 * * *", sweep, zap.NewNop())
	require.NoError(t, err)
	next := s.Next()
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestParseAsOf(t *testing.T) {
	asOf, err := ParseAsOf("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC), asOf)

	_, err = ParseAsOf("10/03/2026")
	assert.Error(t, err)
}

func TestSweep_PartialFailureKeepsCommittedOutcome(t *testing.T) {
	eval := &fakeEvaluator{partialFor: map[string]error{"A": errors.New("apply interventions: safety_check: timeout")}}
	sweep := NewSweepConsumer(staticCouples{ids: []string{"A", "B"}}, eval, nil, nil, nil, 2, zap.NewNop())

	summary, err := sweep.Sweep(context.Background(), time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.PerCouple, 2)
	assert.Equal(t, "A", summary.PerCouple[0].CoupleID)
	assert.Equal(t, "score-A", summary.PerCouple[0].ScoreID)
	assert.Equal(t, []models.InterventionType{models.InterventionCrisisHotline}, summary.PerCouple[0].Interventions)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "A", summary.Failures[0].CoupleID)
}

func TestSweep_DefaultConfigNeverIgnoresOpenInterventions(t *testing.T) {
	os.Clearenv()
	cfg, err := config.Load()
	require.NoError(t, err)

	triggered := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	score := &models.CrisisScore{ScoreID: "s1", CoupleID: "A", Score: 80, Severity: models.SeverityCritical}
	builder := evaluator.NewInterventionBuilder("A", score, time.Duration(cfg.Crisis.InterventionTTLHours)*time.Hour, triggered)
	var rows []*models.CrisisIntervention
	for _, spec := range evaluator.Decide(models.SeverityCritical, models.SignalSnapshot{Signals: models.Signals{RedZoneDays: 4}}) {
		rows = append(rows, builder.BuildIntervention(spec))
	}
	require.NotEmpty(t, rows)

	expirer := &memoryExpirer{rows: rows, now: triggered.Add(90 * 24 * time.Hour)}
	sweep := NewSweepConsumer(staticCouples{ids: []string{"A"}}, &fakeEvaluator{}, nil, expirer, nil, 1, zap.NewNop())

	_, err = sweep.Sweep(context.Background(), time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 1, expirer.calls)
	for _, iv := range rows {
		assert.Nil(t, iv.ExpiresAt, iv.InterventionType)
		assert.True(t, iv.IsOpen(), iv.InterventionType)
	}
}
