package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/sift/internal/common"
	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/service"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestMigrate_IsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	var version int
	err := store.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("")

	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestValidationErrorsAreNotRetryable(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.UpsertMerchantPattern(ctx, &model.MerchantPattern{Pattern: "", Category: "Food"})
	require.ErrorIs(t, err, ErrInvalidPattern)
	assert.False(t, common.IsRetryable(err))

	_, err = store.MerchantFeedbackSince(ctx, time.Time{}, 0)
	require.ErrorIs(t, err, ErrInvalidLimit)
	assert.False(t, common.IsRetryable(err))
}

func TestMerchantPatterns_UpsertAndGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	p := &model.MerchantPattern{
		Pattern:    "STARBUCKS",
		Category:   "Food & Dining",
		Confidence: 0.85,
		UsageCount: 10,
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, store.UpsertMerchantPattern(ctx, p))

	got, err := store.GetMerchantPattern(ctx, "STARBUCKS")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "STARBUCKS", got.Pattern)
	assert.Equal(t, "Food & Dining", got.Category)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
	assert.Equal(t, 10, got.UsageCount)
}

func TestMerchantPatterns_GetIsCaseInsensitive(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMerchantPattern(ctx, &model.MerchantPattern{
		Pattern:    "STARBUCKS",
		Category:   "Food & Dining",
		Confidence: 0.85,
	}))

	got, err := store.GetMerchantPattern(ctx, "starbucks")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "STARBUCKS", got.Pattern)
}

func TestMerchantPatterns_GetMissingReturnsNil(t *testing.T) {
	store := newTestStorage(t)

	got, err := store.GetMerchantPattern(context.Background(), "NOPE")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMerchantPatterns_UpsertReplacesExisting(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMerchantPattern(ctx, &model.MerchantPattern{
		Pattern: "UBER", Category: "Transport", Confidence: 0.7, UsageCount: 1,
	}))
	require.NoError(t, store.UpsertMerchantPattern(ctx, &model.MerchantPattern{
		Pattern: "UBER", Category: "Travel", Confidence: 0.8, UsageCount: 2,
	}))

	patterns, err := store.ListMerchantPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "Travel", patterns[0].Category)
	assert.Equal(t, 2, patterns[0].UsageCount)
}

func TestMerchantPatterns_ListOrderedByConfidence(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for i, p := range []model.MerchantPattern{
		{Pattern: "LOW", Category: "A", Confidence: 0.3},
		{Pattern: "HIGH", Category: "B", Confidence: 0.9},
		{Pattern: "MID", Category: "C", Confidence: 0.6},
	} {
		p := p
		require.NoError(t, store.UpsertMerchantPattern(ctx, &p), "pattern %d", i)
	}

	patterns, err := store.ListMerchantPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 3)
	assert.Equal(t, "HIGH", patterns[0].Pattern)
	assert.Equal(t, "MID", patterns[1].Pattern)
	assert.Equal(t, "LOW", patterns[2].Pattern)
}

func TestMerchantPatterns_DeleteWeak(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMerchantPattern(ctx, &model.MerchantPattern{
		Pattern: "WEAK", Category: "A", Confidence: 0.2, UsageCount: 1,
	}))
	require.NoError(t, store.UpsertMerchantPattern(ctx, &model.MerchantPattern{
		Pattern: "USED OFTEN", Category: "B", Confidence: 0.2, UsageCount: 9,
	}))
	require.NoError(t, store.UpsertMerchantPattern(ctx, &model.MerchantPattern{
		Pattern: "CONFIDENT", Category: "C", Confidence: 0.9, UsageCount: 1,
	}))

	deleted, err := store.DeleteWeakMerchantPatterns(ctx, 2, 0.3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	patterns, err := store.ListMerchantPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, 2)
}

func TestMerchantPatterns_UpsertValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		pattern *model.MerchantPattern
		name    string
	}{
		{name: "nil pattern", pattern: nil},
		{name: "empty pattern text", pattern: &model.MerchantPattern{Category: "A", Confidence: 0.5}},
		{name: "empty category", pattern: &model.MerchantPattern{Pattern: "X", Confidence: 0.5}},
		{name: "confidence above one", pattern: &model.MerchantPattern{Pattern: "X", Category: "A", Confidence: 1.5}},
		{name: "negative confidence", pattern: &model.MerchantPattern{Pattern: "X", Category: "A", Confidence: -0.1}},
		{name: "negative usage", pattern: &model.MerchantPattern{Pattern: "X", Category: "A", Confidence: 0.5, UsageCount: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.UpsertMerchantPattern(ctx, tt.pattern))
		})
	}
}

func TestDefaultRules_ListsOnlyActive(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SeedDefaultRule(ctx, &model.DefaultRule{
		RuleType: model.RuleTypeKeyword, RuleValue: "uber", Category: "Transport",
		Confidence: 0.9, TransactionType: 1, Active: true,
	}))
	require.NoError(t, store.SeedDefaultRule(ctx, &model.DefaultRule{
		RuleType: model.RuleTypeKeyword, RuleValue: "retired", Category: "Old",
		Confidence: 0.9, TransactionType: 1, Active: false,
	}))

	rules, err := store.ListActiveDefaultRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "uber", rules[0].RuleValue)
	assert.True(t, rules[0].Active)
}

func TestDefaultRules_SeedUpsertsOnConflict(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rule := model.DefaultRule{
		RuleType: model.RuleTypeKeyword, RuleValue: "uber", Category: "Transport",
		Confidence: 0.9, TransactionType: 1, Active: true,
	}
	require.NoError(t, store.SeedDefaultRule(ctx, &rule))

	rule.Category = "Travel"
	require.NoError(t, store.SeedDefaultRule(ctx, &rule))

	rules, err := store.ListActiveDefaultRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Travel", rules[0].Category)
}

func TestTrainingExamples_RoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	ex := &model.TrainingExample{
		UserID:          "u1",
		Description:     "STARBUCKS SP 0042",
		Category:        "Food & Dining",
		Amount:          18.90,
		TransactionType: 1,
		Features:        []string{"merchant_starbucks", "amount_small"},
		Verified:        true,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, store.InsertTrainingExample(ctx, ex))

	examples, err := store.ListVerifiedTrainingExamples(ctx)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "STARBUCKS SP 0042", examples[0].Description)
	assert.Equal(t, []string{"merchant_starbucks", "amount_small"}, examples[0].Features)
	assert.True(t, examples[0].Verified)

	count, err := store.CountVerifiedTrainingExamples(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTrainingExamples_UnverifiedExcluded(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTrainingExample(ctx, &model.TrainingExample{
		UserID: "u1", Description: "verified row", Category: "A", Verified: true,
	}))
	require.NoError(t, store.InsertTrainingExample(ctx, &model.TrainingExample{
		UserID: "u1", Description: "unverified row", Category: "B", Verified: false,
	}))

	examples, err := store.ListVerifiedTrainingExamples(ctx)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "verified row", examples[0].Description)

	count, err := store.CountVerifiedTrainingExamples(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTrainingExamples_OrderedOldestFirst(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.InsertTrainingExample(ctx, &model.TrainingExample{
			UserID:      "u1",
			Description: fmt.Sprintf("example %d", i),
			Category:    "A",
			Verified:    true,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	examples, err := store.ListVerifiedTrainingExamples(ctx)
	require.NoError(t, err)
	require.Len(t, examples, 3)
	assert.Equal(t, "example 0", examples[0].Description)
	assert.Equal(t, "example 2", examples[2].Description)
}

func TestTrainingExamples_Validation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	assert.Error(t, store.InsertTrainingExample(ctx, nil))
	assert.Error(t, store.InsertTrainingExample(ctx, &model.TrainingExample{Category: "A"}))
	assert.Error(t, store.InsertTrainingExample(ctx, &model.TrainingExample{Description: "x"}))
}

func insertFeedback(t *testing.T, store *SQLiteStorage, id, merchant, actual string, accepted bool, createdAt time.Time) {
	t.Helper()

	require.NoError(t, store.InsertFeedback(context.Background(), &model.FeedbackRecord{
		ID:                id,
		UserID:            "u1",
		Description:       merchant + " compra",
		SuggestedCategory: "Other",
		ActualCategory:    actual,
		MerchantPattern:   merchant,
		Confidence:        0.5,
		Amount:            10,
		TransactionType:   1,
		WasAccepted:       accepted,
		CreatedAt:         createdAt,
	}))
}

func TestFeedback_InsertAndListSince(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	insertFeedback(t, store, "fb-1", "STARBUCKS", "Food & Dining", true, now.Add(-48*time.Hour))
	insertFeedback(t, store, "fb-2", "UBER", "Transport", false, now.Add(-time.Hour))

	recent, err := store.ListFeedbackSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "fb-2", recent[0].ID)
	assert.Equal(t, "UBER", recent[0].MerchantPattern)
	assert.Equal(t, 1, recent[0].TransactionType)

	all, err := store.ListFeedbackSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Oldest first.
	assert.Equal(t, "fb-1", all[0].ID)

	count, err := store.CountFeedbackSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFeedback_DeleteBefore(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	insertFeedback(t, store, "fb-old", "STARBUCKS", "Food & Dining", true, now.Add(-10*24*time.Hour))
	insertFeedback(t, store, "fb-new", "UBER", "Transport", true, now.Add(-time.Hour))

	deleted, err := store.DeleteFeedbackBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	remaining, err := store.ListFeedbackSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fb-new", remaining[0].ID)
}

func TestFeedback_Validation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	assert.Error(t, store.InsertFeedback(ctx, nil))
	assert.Error(t, store.InsertFeedback(ctx, &model.FeedbackRecord{
		Description: "x", ActualCategory: "A",
	}))
	assert.Error(t, store.InsertFeedback(ctx, &model.FeedbackRecord{
		ID: "fb-1", ActualCategory: "A",
	}))
	assert.Error(t, store.InsertFeedback(ctx, &model.FeedbackRecord{
		ID: "fb-1", Description: "x",
	}))
}

func TestMerchantFeedbackSince_Aggregation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	// STARBUCKS: 3 for Food & Dining, 1 for Shopping.
	insertFeedback(t, store, "fb-1", "STARBUCKS", "Food & Dining", false, now.Add(-time.Hour))
	insertFeedback(t, store, "fb-2", "STARBUCKS", "Food & Dining", false, now.Add(-2*time.Hour))
	insertFeedback(t, store, "fb-3", "STARBUCKS", "Food & Dining", false, now.Add(-3*time.Hour))
	insertFeedback(t, store, "fb-4", "STARBUCKS", "Shopping", false, now.Add(-4*time.Hour))
	// UBER: only 2 rows, below the floor.
	insertFeedback(t, store, "fb-5", "UBER", "Transport", false, now.Add(-time.Hour))
	insertFeedback(t, store, "fb-6", "UBER", "Transport", false, now.Add(-2*time.Hour))
	// Outside the window.
	insertFeedback(t, store, "fb-7", "STARBUCKS", "Shopping", false, now.Add(-30*24*time.Hour))

	stats, err := store.MerchantFeedbackSince(ctx, now.Add(-7*24*time.Hour), 3)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "STARBUCKS", stats[0].MerchantPattern)
	assert.Equal(t, "Food & Dining", stats[0].TopCategory)
	assert.Equal(t, 3, stats[0].TopCategoryHits)
	assert.Equal(t, 4, stats[0].Total)
}

func TestMerchantFeedbackSince_TieBreaksByCategoryName(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	insertFeedback(t, store, "fb-1", "SHELL", "Transport", false, now.Add(-time.Hour))
	insertFeedback(t, store, "fb-2", "SHELL", "Transport", false, now.Add(-2*time.Hour))
	insertFeedback(t, store, "fb-3", "SHELL", "Fuel", false, now.Add(-3*time.Hour))
	insertFeedback(t, store, "fb-4", "SHELL", "Fuel", false, now.Add(-4*time.Hour))

	stats, err := store.MerchantFeedbackSince(ctx, now.Add(-7*24*time.Hour), 3)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Fuel", stats[0].TopCategory)
	assert.Equal(t, 2, stats[0].TopCategoryHits)
	assert.Equal(t, 4, stats[0].Total)
}

func TestMerchantFeedbackSince_InvalidMinCount(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.MerchantFeedbackSince(context.Background(), time.Now(), 0)

	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestModelMetrics_InsertAndLatest(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	latest, err := store.LatestModelMetrics(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.InsertModelMetrics(ctx, &model.ModelMetrics{
		ModelVersion: "v20260101-000000", AccuracyScore: 0.7, CreatedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.InsertModelMetrics(ctx, &model.ModelMetrics{
		ModelVersion: "v20260102-000000", AccuracyScore: 0.8, CreatedAt: time.Now(),
	}))

	latest, err = store.LatestModelMetrics(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "v20260102-000000", latest.ModelVersion)
	assert.InDelta(t, 0.8, latest.AccuracyScore, 1e-9)
}

func TestModelMetrics_Validation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	assert.Error(t, store.InsertModelMetrics(ctx, nil))
	assert.Error(t, store.InsertModelMetrics(ctx, &model.ModelMetrics{}))
}

func seedTransaction(t *testing.T, store *SQLiteStorage, id, userID, description, category string, date time.Time) {
	t.Helper()

	require.NoError(t, store.SaveTransaction(context.Background(), &model.Transaction{
		ID:              id,
		UserID:          userID,
		Description:     description,
		Amount:          10,
		Category:        category,
		TransactionType: 1,
		Date:            date,
	}))
}

func TestTransactions_ListRecentSelection(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	seedTransaction(t, store, "t1", "u1", "oldest", "A", now.Add(-72*time.Hour))
	seedTransaction(t, store, "t2", "u1", "newest", "B", now.Add(-time.Hour))
	seedTransaction(t, store, "t3", "u1", "middle", "C", now.Add(-24*time.Hour))

	transactions, err := store.ListUserTransactions(ctx, "u1", 2, service.HistoryRecent)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, "t2", transactions[0].ID)
	assert.Equal(t, "t3", transactions[1].ID)
}

func TestTransactions_ListArbitrarySelection(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	seedTransaction(t, store, "t1", "u1", "first", "A", now.Add(-time.Hour))
	seedTransaction(t, store, "t2", "u1", "second", "B", now.Add(-72*time.Hour))

	transactions, err := store.ListUserTransactions(ctx, "u1", 10, service.HistoryArbitrary)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, "t1", transactions[0].ID)
}

func TestTransactions_ExcludesOtherUsersAndUncategorized(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	seedTransaction(t, store, "t1", "u1", "mine", "A", now)
	seedTransaction(t, store, "t2", "u2", "theirs", "B", now)
	seedTransaction(t, store, "t3", "u1", "uncategorized", "", now)

	transactions, err := store.ListUserTransactions(ctx, "u1", 10, service.HistoryRecent)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "t1", transactions[0].ID)
}

func TestTransactions_ListValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.ListUserTransactions(ctx, "", 10, service.HistoryRecent)
	assert.Error(t, err)

	_, err = store.ListUserTransactions(ctx, "u1", 0, service.HistoryRecent)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = store.ListUserTransactions(ctx, "u1", 10, service.HistorySelection("bogus"))
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestTransactions_SaveReplacesExisting(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	seedTransaction(t, store, "t1", "u1", "before", "A", now)
	seedTransaction(t, store, "t1", "u1", "after", "B", now)

	transactions, err := store.ListUserTransactions(ctx, "u1", 10, service.HistoryRecent)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "after", transactions[0].Description)
	assert.Equal(t, "B", transactions[0].Category)
}
