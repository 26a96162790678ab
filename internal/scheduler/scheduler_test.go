package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/sift/internal/engine"
	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/service"
	"github.com/ledgerline/sift/internal/storage"
	"github.com/ledgerline/sift/internal/testutil"
)

// mockAlerter records alerts raised by the monitoring job.
type mockAlerter struct {
	messages []string
	fields   []map[string]any
}

var _ service.Alerter = (*mockAlerter)(nil)

func (m *mockAlerter) Alert(_ context.Context, message string, fields map[string]any) error {
	m.messages = append(m.messages, message)
	m.fields = append(m.fields, fields)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *storage.SQLiteStorage, *engine.Engine, *mockAlerter) {
	t.Helper()

	store := testutil.SetupTestDB(t)
	eng := engine.New(store)
	require.NoError(t, eng.Initialize(context.Background()))

	alerter := &mockAlerter{}
	return New(eng, store, alerter), store, eng, alerter
}

func seedFeedback(t *testing.T, store *storage.SQLiteStorage, n int, accepted bool, merchant, actual string, age time.Duration) {
	t.Helper()

	for i := 0; i < n; i++ {
		err := store.InsertFeedback(context.Background(), &model.FeedbackRecord{
			ID:                fmt.Sprintf("fb-%s-%v-%d-%d", merchant, accepted, age/time.Hour, i),
			CreatedAt:         time.Now().Add(-age),
			UserID:            "u1",
			Description:       merchant + " purchase",
			SuggestedCategory: "Other",
			ActualCategory:    actual,
			MerchantPattern:   merchant,
			Confidence:        0.5,
			Amount:            10,
			TransactionType:   1,
			WasAccepted:       accepted,
		})
		require.NoError(t, err)
	}
}

func TestScheduler_StartStopStatus(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)

	status := s.Status()
	assert.False(t, status.Initialized)
	assert.Empty(t, status.ScheduledTasks)

	require.NoError(t, s.Start())
	// Second start is a no-op.
	require.NoError(t, s.Start())

	status = s.Status()
	assert.True(t, status.Initialized)
	assert.Len(t, status.ScheduledTasks, 4)
	assert.Contains(t, status.ScheduledTasks, JobRetraining)
	assert.Contains(t, status.ScheduledTasks, JobMonitoring)
	assert.Contains(t, status.ScheduledTasks, JobPatternRefresh)
	assert.Contains(t, status.ScheduledTasks, JobRetention)

	s.Stop()
	s.Stop()
	assert.False(t, s.Status().Initialized)
}

func TestScheduler_StartRejectsBadCronSpec(t *testing.T) {
	store := testutil.SetupTestDB(t)
	eng := engine.New(store)
	require.NoError(t, eng.Initialize(context.Background()))

	cfg := DefaultConfig()
	cfg.RetrainSpec = "not a cron spec"
	s := NewWithConfig(eng, store, nil, cfg)

	err := s.Start()

	require.Error(t, err)
	assert.False(t, s.Status().Initialized)
}

func TestScheduler_RetrainingSkipsWithoutEnoughFeedback(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	seedFeedback(t, store, 5, true, "STARBUCKS", "Food & Dining", time.Hour)

	s.runRetraining(ctx)

	latest, err := store.LatestModelMetrics(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestScheduler_RetrainingRecordsMetrics(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	seedFeedback(t, store, 8, true, "STARBUCKS", "Other", time.Hour)
	seedFeedback(t, store, 4, false, "UBER", "Transport", time.Hour)

	s.runRetraining(ctx)

	latest, err := store.LatestModelMetrics(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 12, latest.TotalPredictions)
	assert.Equal(t, 8, latest.CorrectPredictions)
	assert.InDelta(t, 8.0/12.0, latest.AccuracyScore, 1e-9)
	// Too few verified examples to fit a model, so the snapshot carries
	// the untrained marker.
	assert.Equal(t, "untrained", latest.ModelVersion)
}

func TestScheduler_RetrainingCountsOnlyFeedbackSinceLastSnapshot(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	seedFeedback(t, store, 12, true, "STARBUCKS", "Other", 48*time.Hour)
	s.runRetraining(ctx)

	first, err := store.LatestModelMetrics(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Only 3 new records since the snapshot: below the floor, no new
	// metrics row.
	seedFeedback(t, store, 3, true, "UBER", "Transport", 0)
	s.runRetraining(ctx)

	latest, err := store.LatestModelMetrics(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, first.CreatedAt.Unix(), latest.CreatedAt.Unix())
	assert.Equal(t, first.TotalPredictions, latest.TotalPredictions)
}

func TestScheduler_ManualRetrainAlwaysRecordsMetrics(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	// No feedback at all: the manual path still runs and snapshots.
	require.NoError(t, s.RunManualRetrain(ctx))

	latest, err := store.LatestModelMetrics(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Zero(t, latest.TotalPredictions)
}

func TestScheduler_MonitorAlertsBelowThreshold(t *testing.T) {
	s, store, _, alerter := newTestScheduler(t)
	ctx := context.Background()

	// 2 of 10 accepted: 20% acceptance, well under 65%.
	seedFeedback(t, store, 2, true, "STARBUCKS", "Food & Dining", time.Hour)
	seedFeedback(t, store, 8, false, "STARBUCKS", "Food & Dining", 2*time.Hour)

	s.runPerformanceMonitor(ctx)

	require.Len(t, alerter.messages, 1)
	assert.Contains(t, alerter.messages[0], "acceptance rate")
	assert.InDelta(t, 0.2, alerter.fields[0]["acceptance_rate"], 1e-9)
}

func TestScheduler_MonitorStaysQuietAboveThreshold(t *testing.T) {
	s, store, _, alerter := newTestScheduler(t)
	ctx := context.Background()

	seedFeedback(t, store, 9, true, "STARBUCKS", "Food & Dining", time.Hour)
	seedFeedback(t, store, 1, false, "STARBUCKS", "Food & Dining", time.Hour)

	s.runPerformanceMonitor(ctx)

	assert.Empty(t, alerter.messages)
}

func TestScheduler_MonitorIgnoresFeedbackOutsideWindow(t *testing.T) {
	s, store, _, alerter := newTestScheduler(t)
	ctx := context.Background()

	// All rejections, but older than the 7 day window.
	seedFeedback(t, store, 10, false, "STARBUCKS", "Food & Dining", 30*24*time.Hour)

	s.runPerformanceMonitor(ctx)

	assert.Empty(t, alerter.messages)
}

func TestScheduler_MonitorTolerateNilAlerter(t *testing.T) {
	store := testutil.SetupTestDB(t)
	eng := engine.New(store)
	ctx := context.Background()
	require.NoError(t, eng.Initialize(ctx))
	s := New(eng, store, nil)

	seedFeedback(t, store, 10, false, "STARBUCKS", "Food & Dining", time.Hour)

	assert.NotPanics(t, func() { s.runPerformanceMonitor(ctx) })
}

func TestScheduler_PatternRefreshAdoptsMajorityCategory(t *testing.T) {
	s, store, eng, _ := newTestScheduler(t)
	ctx := context.Background()

	// 4 of 5 recent feedback rows say STARBUCKS is Food & Dining.
	seedFeedback(t, store, 4, false, "STARBUCKS", "Food & Dining", time.Hour)
	seedFeedback(t, store, 1, false, "STARBUCKS", "Shopping", 2*time.Hour)
	// Below the per-merchant floor of 3: ignored.
	seedFeedback(t, store, 2, false, "UBER", "Transport", time.Hour)

	s.runPatternRefresh(ctx)

	p, err := store.GetMerchantPattern(ctx, "STARBUCKS")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Food & Dining", p.Category)
	assert.InDelta(t, 4.0/5.0+0.1, p.Confidence, 1e-9)
	assert.Equal(t, 5, p.UsageCount)

	missing, err := store.GetMerchantPattern(ctx, "UBER")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// The engine cache was reloaded with the refreshed pattern.
	suggestions := eng.SuggestCategory(ctx, "STARBUCKS SP 0042", 18, 1, "")
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "Food & Dining", suggestions[0].Category)
}

func TestScheduler_PatternRefreshCapsConfidenceAndKeepsUsage(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	testutil.SeedMerchantPattern(t, store, "NETFLIX", "Other", 0.5, 40)
	// Unanimous feedback: the raw ratio plus boost would exceed the cap.
	seedFeedback(t, store, 6, false, "NETFLIX", "Entertainment", time.Hour)

	s.runPatternRefresh(ctx)

	p, err := store.GetMerchantPattern(ctx, "NETFLIX")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Entertainment", p.Category)
	assert.InDelta(t, 0.95, p.Confidence, 1e-9)
	// Existing usage exceeds the feedback total and is preserved.
	assert.Equal(t, 40, p.UsageCount)
}

func TestScheduler_RetentionDeletesOldFeedbackAndWeakPatterns(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	seedFeedback(t, store, 3, true, "STARBUCKS", "Food & Dining", 7*30*24*time.Hour)
	seedFeedback(t, store, 2, true, "UBER", "Transport", time.Hour)

	testutil.SeedMerchantPattern(t, store, "WEAK CO", "Other", 0.2, 1)
	testutil.SeedMerchantPattern(t, store, "STRONG CO", "Food & Dining", 0.9, 50)

	s.runRetention(ctx)

	remaining, err := store.ListFeedbackSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	weak, err := store.GetMerchantPattern(ctx, "WEAK CO")
	require.NoError(t, err)
	assert.Nil(t, weak)

	strong, err := store.GetMerchantPattern(ctx, "STRONG CO")
	require.NoError(t, err)
	assert.NotNil(t, strong)
}

func TestScheduler_BoundaryContainsPanics(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	require.NoError(t, s.Start())
	defer s.Stop()

	wrapped := s.boundary("exploding_job", func(context.Context) {
		panic("boom")
	})

	assert.NotPanics(t, wrapped)
}

func TestScheduler_JobContextOutlivesCallerAndClosesOnStop(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)

	require.NoError(t, s.Start())

	// Jobs run under the scheduler's own context, so cancelling whatever
	// context the caller held when starting must not affect them.
	require.NoError(t, s.jobCtx.Err())

	s.Stop()
	assert.ErrorIs(t, s.jobCtx.Err(), context.Canceled)
}

// flakyStorage fails an operation a fixed number of times before
// delegating, exercising the backoff path the jobs run under.
type flakyStorage struct {
	service.Storage
	deleteFeedbackCalls int
	failures            int
}

func (f *flakyStorage) DeleteFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleteFeedbackCalls++
	if f.deleteFeedbackCalls <= f.failures {
		return 0, fmt.Errorf("database is locked")
	}
	return f.Storage.DeleteFeedbackBefore(ctx, cutoff)
}

func TestScheduler_RetentionRetriesTransientStorageFailures(t *testing.T) {
	store := testutil.SetupTestDB(t)
	eng := engine.New(store)
	ctx := context.Background()
	require.NoError(t, eng.Initialize(ctx))

	flaky := &flakyStorage{Storage: store, failures: 2}
	cfg := DefaultConfig()
	cfg.Retry = service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	s := NewWithConfig(eng, flaky, nil, cfg)

	seedFeedback(t, store, 3, true, "STARBUCKS", "Food & Dining", 7*30*24*time.Hour)

	s.runRetention(ctx)

	// Two failures, then the third attempt deletes the expired rows.
	assert.Equal(t, 3, flaky.deleteFeedbackCalls)
	remaining, err := store.ListFeedbackSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMacroPrecisionRecall(t *testing.T) {
	records := []model.FeedbackRecord{
		{SuggestedCategory: "Food", ActualCategory: "Food"},
		{SuggestedCategory: "Food", ActualCategory: "Transport"},
		{SuggestedCategory: "Transport", ActualCategory: "Transport"},
		{SuggestedCategory: "Transport", ActualCategory: "Transport"},
	}

	precision, recall := macroPrecisionRecall(records)

	// Food: precision 1/2, recall 1/1. Transport: precision 2/2,
	// recall 2/3.
	assert.InDelta(t, (0.5+1.0)/2.0, precision, 1e-9)
	assert.InDelta(t, (1.0+2.0/3.0)/2.0, recall, 1e-9)
}

func TestMacroPrecisionRecall_Empty(t *testing.T) {
	precision, recall := macroPrecisionRecall(nil)

	assert.Zero(t, precision)
	assert.Zero(t, recall)
}
