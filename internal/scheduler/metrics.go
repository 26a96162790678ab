package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/sift/internal/model"
)

// recordMetrics computes a fresh metrics snapshot over the entire feedback
// history, not just the window that triggered retraining, and appends it.
func (s *Scheduler) recordMetrics(ctx context.Context) error {
	var records []model.FeedbackRecord
	err := s.withRetry(ctx, func() error {
		var opErr error
		records, opErr = s.storage.ListFeedbackSince(ctx, time.Time{})
		return opErr
	})
	if err != nil {
		return fmt.Errorf("failed to load feedback history: %w", err)
	}

	version := s.engine.ModelVersion()
	if version == "" {
		version = "untrained"
	}

	metrics := model.ModelMetrics{
		CreatedAt:        time.Now(),
		ModelVersion:     version,
		TrainingDataSize: s.engine.TrainingSize(),
		TotalPredictions: len(records),
	}

	if len(records) > 0 {
		correct := 0
		for _, fb := range records {
			if fb.WasAccepted {
				correct++
			}
		}
		metrics.CorrectPredictions = correct
		metrics.AccuracyScore = float64(correct) / float64(len(records))
		metrics.PrecisionScore, metrics.RecallScore = macroPrecisionRecall(records)
	}

	if err := s.withRetry(ctx, func() error {
		return s.storage.InsertModelMetrics(ctx, &metrics)
	}); err != nil {
		return fmt.Errorf("failed to persist model metrics: %w", err)
	}

	slog.Info("Model metrics recorded",
		"model_version", metrics.ModelVersion,
		"accuracy", metrics.AccuracyScore,
		"precision", metrics.PrecisionScore,
		"recall", metrics.RecallScore,
		"total_predictions", metrics.TotalPredictions)

	return nil
}

// macroPrecisionRecall treats each feedback row as one prediction
// (suggested category) against one truth (actual category) and
// macro-averages per-category precision and recall over the categories
// that appear.
func macroPrecisionRecall(records []model.FeedbackRecord) (precision, recall float64) {
	truePositives := make(map[string]int)
	predicted := make(map[string]int)
	actual := make(map[string]int)

	for _, fb := range records {
		if fb.SuggestedCategory != "" {
			predicted[fb.SuggestedCategory]++
		}
		actual[fb.ActualCategory]++
		if fb.SuggestedCategory == fb.ActualCategory {
			truePositives[fb.ActualCategory]++
		}
	}

	var precisionSum float64
	for category, count := range predicted {
		precisionSum += float64(truePositives[category]) / float64(count)
	}
	if len(predicted) > 0 {
		precision = precisionSum / float64(len(predicted))
	}

	var recallSum float64
	for category, count := range actual {
		recallSum += float64(truePositives[category]) / float64(count)
	}
	if len(actual) > 0 {
		recall = recallSum / float64(len(actual))
	}

	return precision, recall
}
