// Package scheduler runs the unattended maintenance loop around the
// categorization engine: periodic retraining, performance monitoring,
// merchant pattern refresh, and data retention.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ledgerline/sift/internal/common"
	"github.com/ledgerline/sift/internal/engine"
	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/service"
)

// Job names, used in status reporting and logs.
const (
	JobRetraining     = "model_retraining"
	JobMonitoring     = "performance_monitoring"
	JobPatternRefresh = "merchant_pattern_refresh"
	JobRetention      = "data_retention"
)

// Config holds configuration options for the scheduler.
type Config struct {
	RetrainSpec         string
	MonitorSpec         string
	RefreshSpec         string
	CleanupSpec         string
	RetentionPeriod     time.Duration
	MonitorWindow       time.Duration
	AcceptanceThreshold float64
	MinFeedbackRetrain  int
	MinMerchantFeedback int
	Retry               service.RetryOptions
}

// DefaultConfig returns the default job cadences and thresholds.
func DefaultConfig() Config {
	return Config{
		RetrainSpec:         "0 2 * * *",   // daily at 02:00
		MonitorSpec:         "0 */6 * * *", // every 6 hours
		RefreshSpec:         "30 */6 * * *",
		CleanupSpec:         "0 3 * * 0", // weekly, Sunday 03:00
		RetentionPeriod:     model.FeedbackRetention,
		MonitorWindow:       7 * 24 * time.Hour,
		AcceptanceThreshold: 0.65,
		MinFeedbackRetrain:  10,
		MinMerchantFeedback: 3,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Status describes the scheduler for operational queries.
type Status struct {
	ScheduledTasks map[string]string `json:"scheduled_tasks"`
	Initialized    bool              `json:"initialized"`
}

// Scheduler owns the four background jobs. Each job runs inside its own
// failure boundary: a panic or error in one never blocks another, and a
// failed run never cancels the next.
type Scheduler struct {
	engine    *engine.Engine
	storage   service.Storage
	alerter   service.Alerter
	cron      *cron.Cron
	tasks     map[string]string
	cfg       Config
	mu        sync.Mutex
	started   bool
	jobCtx    context.Context
	jobCancel context.CancelFunc
}

// New creates a scheduler with default cadences. The alerter may be nil,
// in which case performance alerts are log-only.
func New(eng *engine.Engine, storage service.Storage, alerter service.Alerter) *Scheduler {
	return NewWithConfig(eng, storage, alerter, DefaultConfig())
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(eng *engine.Engine, storage service.Storage, alerter service.Alerter, cfg Config) *Scheduler {
	return &Scheduler{
		engine:  eng,
		storage: storage,
		alerter: alerter,
		cfg:     cfg,
		tasks:   make(map[string]string),
	}
}

// Start registers and starts the cron jobs. Calling Start on a running
// scheduler is a no-op. Jobs run under a context owned by the scheduler
// and closed in Stop, so a cancelled caller context never strands a
// future firing.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.cron = cron.New()
	s.jobCtx, s.jobCancel = context.WithCancel(context.Background())

	jobs := []struct {
		fn      func(context.Context)
		name    string
		spec    string
		cadence string
	}{
		{s.runRetraining, JobRetraining, s.cfg.RetrainSpec, "daily at 02:00"},
		{s.runPerformanceMonitor, JobMonitoring, s.cfg.MonitorSpec, "every 6 hours"},
		{s.runPatternRefresh, JobPatternRefresh, s.cfg.RefreshSpec, "every 6 hours"},
		{s.runRetention, JobRetention, s.cfg.CleanupSpec, "weekly"},
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, s.boundary(job.name, job.fn)); err != nil {
			s.jobCancel()
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.tasks[job.name] = job.cadence
	}

	s.cron.Start()
	s.started = true

	slog.Info("Scheduler started", "jobs", len(jobs))
	return nil
}

// Stop halts the cron loop. Jobs already running finish on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cron.Stop()
	s.jobCancel()
	s.started = false
	slog.Info("Scheduler stopped")
}

// Status reports whether the scheduler is running and which jobs it holds.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make(map[string]string, len(s.tasks))
	for name, cadence := range s.tasks {
		tasks[name] = cadence
	}

	return Status{
		Initialized:    s.started,
		ScheduledTasks: tasks,
	}
}

// boundary wraps a job so that a panic or a stray error inside it is
// logged and contained.
func (s *Scheduler) boundary(name string, fn func(context.Context)) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Scheduled job panicked", "job", name, "panic", r)
			}
		}()

		started := time.Now()
		slog.Debug("Scheduled job starting", "job", name)
		fn(s.jobCtx)
		slog.Debug("Scheduled job finished", "job", name, "duration", time.Since(started))
	}
}

// withRetry runs a storage operation under the configured backoff policy.
// Scheduled jobs share the database with the serving path, so a transient
// busy error should not burn a whole cron slot.
func (s *Scheduler) withRetry(ctx context.Context, op func() error) error {
	return common.WithRetry(ctx, op, s.cfg.Retry)
}

// RunManualRetrain runs the retraining pass and metrics update
// synchronously, outside the schedule. Unlike the cron path it reports
// failure to the caller.
func (s *Scheduler) RunManualRetrain(ctx context.Context) error {
	if err := s.engine.RetrainModel(ctx); err != nil {
		return fmt.Errorf("manual retrain failed: %w", err)
	}
	if err := s.recordMetrics(ctx); err != nil {
		return fmt.Errorf("manual retrain metrics update failed: %w", err)
	}
	return nil
}

// runRetraining is the daily retraining job: it retrains only when enough
// feedback arrived since the last metrics snapshot, then records fresh
// metrics.
func (s *Scheduler) runRetraining(ctx context.Context) {
	since := time.Time{}
	var latest *model.ModelMetrics
	err := s.withRetry(ctx, func() error {
		var opErr error
		latest, opErr = s.storage.LatestModelMetrics(ctx)
		return opErr
	})
	if err != nil {
		slog.Error("Retraining job: failed to read latest metrics", "error", err)
		return
	}
	if latest != nil {
		since = latest.CreatedAt
	}

	var count int
	err = s.withRetry(ctx, func() error {
		var opErr error
		count, opErr = s.storage.CountFeedbackSince(ctx, since)
		return opErr
	})
	if err != nil {
		slog.Error("Retraining job: failed to count feedback", "error", err)
		return
	}

	if count < s.cfg.MinFeedbackRetrain {
		slog.Info("Retraining job: not enough new feedback, skipping",
			"new_feedback", count,
			"required", s.cfg.MinFeedbackRetrain)
		return
	}

	if err := s.engine.RetrainModel(ctx); err != nil {
		slog.Error("Retraining job: retrain failed", "error", err)
		return
	}

	if err := s.recordMetrics(ctx); err != nil {
		slog.Error("Retraining job: failed to record metrics", "error", err)
	}
}

// runPerformanceMonitor computes the trailing acceptance rate and raises
// an alert when it drops below the threshold.
func (s *Scheduler) runPerformanceMonitor(ctx context.Context) {
	since := time.Now().Add(-s.cfg.MonitorWindow)
	var records []model.FeedbackRecord
	err := s.withRetry(ctx, func() error {
		var opErr error
		records, opErr = s.storage.ListFeedbackSince(ctx, since)
		return opErr
	})
	if err != nil {
		slog.Error("Monitoring job: failed to load feedback", "error", err)
		return
	}

	if len(records) == 0 {
		slog.Info("Monitoring job: no feedback in window, nothing to evaluate")
		return
	}

	accepted := 0
	for _, fb := range records {
		if fb.WasAccepted {
			accepted++
		}
	}
	rate := float64(accepted) / float64(len(records))

	slog.Info("Monitoring job: acceptance rate computed",
		"rate", rate,
		"window_feedback", len(records))

	if rate >= s.cfg.AcceptanceThreshold {
		return
	}

	slog.Warn("Suggestion acceptance rate below threshold",
		"rate", rate,
		"threshold", s.cfg.AcceptanceThreshold)

	if s.alerter != nil {
		err := s.alerter.Alert(ctx, "categorization acceptance rate degraded", map[string]any{
			"acceptance_rate": rate,
			"threshold":       s.cfg.AcceptanceThreshold,
			"window_feedback": len(records),
		})
		if err != nil {
			slog.Error("Monitoring job: failed to deliver alert", "error", err)
		}
	}
}

// runPatternRefresh folds the trailing window of feedback back into the
// merchant pattern table: every merchant with enough feedback gets its
// majority category and a recomputed confidence.
func (s *Scheduler) runPatternRefresh(ctx context.Context) {
	since := time.Now().Add(-s.cfg.MonitorWindow)
	var stats []service.MerchantFeedbackStats
	err := s.withRetry(ctx, func() error {
		var opErr error
		stats, opErr = s.storage.MerchantFeedbackSince(ctx, since, s.cfg.MinMerchantFeedback)
		return opErr
	})
	if err != nil {
		slog.Error("Pattern refresh job: failed to aggregate feedback", "error", err)
		return
	}

	updated := 0
	for _, st := range stats {
		confidence := float64(st.TopCategoryHits)/float64(st.Total) + 0.1
		if confidence > 0.95 {
			confidence = 0.95
		}

		usage := st.Total
		if existing, err := s.storage.GetMerchantPattern(ctx, st.MerchantPattern); err == nil && existing != nil {
			if existing.UsageCount > usage {
				usage = existing.UsageCount
			}
		}

		row := model.MerchantPattern{
			Pattern:    st.MerchantPattern,
			Category:   st.TopCategory,
			Confidence: confidence,
			UsageCount: usage,
			UpdatedAt:  time.Now(),
		}
		if err := s.withRetry(ctx, func() error {
			return s.storage.UpsertMerchantPattern(ctx, &row)
		}); err != nil {
			slog.Error("Pattern refresh job: upsert failed",
				"pattern", st.MerchantPattern,
				"error", err)
			continue
		}
		updated++
	}

	if updated > 0 {
		if err := s.engine.ReloadMerchantPatterns(ctx); err != nil {
			slog.Error("Pattern refresh job: cache reload failed", "error", err)
		}
	}

	slog.Info("Pattern refresh job complete",
		"merchants_considered", len(stats),
		"patterns_updated", updated)
}

// runRetention deletes expired feedback and weak merchant patterns.
func (s *Scheduler) runRetention(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.RetentionPeriod)

	var feedbackDeleted int64
	err := s.withRetry(ctx, func() error {
		var opErr error
		feedbackDeleted, opErr = s.storage.DeleteFeedbackBefore(ctx, cutoff)
		return opErr
	})
	if err != nil {
		slog.Error("Retention job: feedback cleanup failed", "error", err)
	}

	var patternsDeleted int64
	err = s.withRetry(ctx, func() error {
		var opErr error
		patternsDeleted, opErr = s.storage.DeleteWeakMerchantPatterns(ctx, 2, 0.3)
		return opErr
	})
	if err != nil {
		slog.Error("Retention job: pattern cleanup failed", "error", err)
	}

	slog.Info("Retention job complete",
		"feedback_deleted", feedbackDeleted,
		"patterns_deleted", patternsDeleted)
}
