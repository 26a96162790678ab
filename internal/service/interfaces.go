// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgerline/sift/internal/model"
)

// HistorySelection controls which of a user's past transactions the history
// similarity scan reads when more exist than the scan limit.
type HistorySelection string

const (
	// HistoryRecent selects the most recently dated transactions.
	HistoryRecent HistorySelection = "recent"
	// HistoryArbitrary lets the storage layer pick any matching rows.
	HistoryArbitrary HistorySelection = "arbitrary"
)

// MerchantFeedbackStats aggregates feedback rows for a single merchant key.
type MerchantFeedbackStats struct {
	MerchantPattern string
	TopCategory     string
	Total           int
	TopCategoryHits int
}

// Storage defines the contract for the persistence gateway. The core depends
// only on this interface, never on a specific database.
type Storage interface {
	// Merchant pattern operations
	ListMerchantPatterns(ctx context.Context) ([]model.MerchantPattern, error)
	GetMerchantPattern(ctx context.Context, pattern string) (*model.MerchantPattern, error)
	UpsertMerchantPattern(ctx context.Context, p *model.MerchantPattern) error
	DeleteWeakMerchantPatterns(ctx context.Context, maxUsage int, maxConfidence float64) (int64, error)

	// Default rule operations
	ListActiveDefaultRules(ctx context.Context) ([]model.DefaultRule, error)

	// Training data operations
	InsertTrainingExample(ctx context.Context, ex *model.TrainingExample) error
	ListVerifiedTrainingExamples(ctx context.Context) ([]model.TrainingExample, error)
	CountVerifiedTrainingExamples(ctx context.Context) (int, error)

	// Feedback operations
	InsertFeedback(ctx context.Context, fb *model.FeedbackRecord) error
	ListFeedbackSince(ctx context.Context, since time.Time) ([]model.FeedbackRecord, error)
	CountFeedbackSince(ctx context.Context, since time.Time) (int, error)
	MerchantFeedbackSince(ctx context.Context, since time.Time, minCount int) ([]MerchantFeedbackStats, error)
	DeleteFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Model metrics operations
	InsertModelMetrics(ctx context.Context, m *model.ModelMetrics) error
	LatestModelMetrics(ctx context.Context) (*model.ModelMetrics, error)

	// Transaction history operations
	ListUserTransactions(ctx context.Context, userID string, limit int, selection HistorySelection) ([]model.Transaction, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Alerter receives performance degradation alerts from the scheduler.
// Delivery (email, chat, pager) is an external concern.
type Alerter interface {
	Alert(ctx context.Context, message string, fields map[string]any) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
