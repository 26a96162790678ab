package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/sift/internal/features"
	"github.com/ledgerline/sift/internal/model"
)

// RecordFeedback persists a user's accept/reject decision and feeds the
// learning loop: a rejected suggestion with a detectable merchant corrects
// the merchant pattern immediately, and every decision becomes a verified
// training example. Persistence failures on this path are logged, never
// surfaced; losing one feedback record must not break the recording client.
func (e *Engine) RecordFeedback(ctx context.Context, fb model.FeedbackRecord) {
	if err := e.ensureInitialized(ctx); err != nil {
		slog.Warn("Recording feedback on uninitialized engine", "error", err)
	}

	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	fb.MerchantPattern = features.ExtractMerchant(fb.Description)

	if err := e.storage.InsertFeedback(ctx, &fb); err != nil {
		slog.Error("Failed to record feedback", "feedback_id", fb.ID, "error", err)
	}

	// Self-correct in real time: a rejection with a recognizable merchant
	// rewrites the pattern now instead of waiting for the scheduler.
	if !fb.WasAccepted && fb.MerchantPattern != "" {
		if err := e.UpdateMerchantPattern(ctx, fb.MerchantPattern, fb.ActualCategory); err != nil {
			slog.Error("Failed to update merchant pattern from feedback",
				"pattern", fb.MerchantPattern,
				"category", fb.ActualCategory,
				"error", err)
		}
	}

	example := model.TrainingExample{
		CreatedAt:       fb.CreatedAt,
		UserID:          fb.UserID,
		Description:     fb.Description,
		Category:        fb.ActualCategory,
		Amount:          fb.Amount,
		TransactionType: fb.TransactionType,
		Features:        features.Extract(fb.Description, fb.Amount),
		Verified:        true,
	}
	if err := e.storage.InsertTrainingExample(ctx, &example); err != nil {
		slog.Error("Failed to append training example", "feedback_id", fb.ID, "error", err)
	}
}

// UpdateMerchantPattern creates or reinforces a merchant pattern. An
// existing pattern has its usage incremented and category overwritten; a
// new one starts at confidence 0.7. The in-memory cache is reloaded after
// the mutation so the next suggestion sees it.
func (e *Engine) UpdateMerchantPattern(ctx context.Context, pattern, category string) error {
	key := strings.ToUpper(strings.TrimSpace(pattern))
	if key == "" {
		return fmt.Errorf("merchant pattern cannot be empty")
	}

	existing, err := e.storage.GetMerchantPattern(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to look up merchant pattern: %w", err)
	}

	row := model.MerchantPattern{
		Pattern:    key,
		Category:   category,
		Confidence: 0.7,
		UsageCount: 1,
		UpdatedAt:  time.Now(),
	}
	if existing != nil {
		row.Confidence = existing.Confidence
		row.UsageCount = existing.UsageCount + 1
	}

	if err := e.storage.UpsertMerchantPattern(ctx, &row); err != nil {
		return fmt.Errorf("failed to upsert merchant pattern: %w", err)
	}

	if err := e.store.loadMerchantPatterns(ctx, e.storage); err != nil {
		// Serving path: keep the last-known-good cache.
		slog.Error("Failed to reload merchant patterns after update", "error", err)
	}

	return nil
}

// RetrainModel refits the classifier from all verified training examples.
// Fewer examples than the retrain floor is a logged skip that leaves the
// current model untouched.
func (e *Engine) RetrainModel(ctx context.Context) error {
	if err := e.ensureInitialized(ctx); err != nil {
		return err
	}

	examples, err := e.storage.ListVerifiedTrainingExamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to load training examples: %w", err)
	}

	if len(examples) < e.cfg.MinRetrainExamples {
		slog.Info("Skipping retraining: insufficient data",
			"examples", len(examples),
			"required", e.cfg.MinRetrainExamples)
		return nil
	}

	e.trainClassifier(examples)
	slog.Info("Retraining complete", "examples", len(examples))
	return nil
}
