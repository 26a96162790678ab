// Package testutil provides shared fixtures for tests that need a real
// storage gateway.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/storage"
)

// SetupTestDB creates an in-memory SQLite gateway with migrations applied
// and cleanup registered.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// SeedMerchantPattern inserts a merchant pattern or fails the test.
func SeedMerchantPattern(t *testing.T, store *storage.SQLiteStorage, pattern, category string, confidence float64, usage int) {
	t.Helper()

	err := store.UpsertMerchantPattern(context.Background(), &model.MerchantPattern{
		Pattern:    pattern,
		Category:   category,
		Confidence: confidence,
		UsageCount: usage,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to seed merchant pattern %q: %v", pattern, err)
	}
}

// SeedKeywordRule inserts an active keyword rule or fails the test.
func SeedKeywordRule(t *testing.T, store *storage.SQLiteStorage, keyword, category string, confidence float64, transactionType int) {
	t.Helper()

	err := store.SeedDefaultRule(context.Background(), &model.DefaultRule{
		RuleType:        model.RuleTypeKeyword,
		RuleValue:       keyword,
		Category:        category,
		Confidence:      confidence,
		TransactionType: transactionType,
		Active:          true,
	})
	if err != nil {
		t.Fatalf("failed to seed rule %q: %v", keyword, err)
	}
}

// SeedTrainingExamples inserts n verified examples cycling through the
// given description/category pairs.
func SeedTrainingExamples(t *testing.T, store *storage.SQLiteStorage, n int, pairs [][2]string) {
	t.Helper()

	if len(pairs) == 0 {
		t.Fatal("SeedTrainingExamples requires at least one pair")
	}

	for i := 0; i < n; i++ {
		pair := pairs[i%len(pairs)]
		err := store.InsertTrainingExample(context.Background(), &model.TrainingExample{
			UserID:          "seed-user",
			Description:     pair[0],
			Category:        pair[1],
			Amount:          10,
			TransactionType: 1,
			Verified:        true,
			CreatedAt:       time.Now().Add(-time.Duration(n-i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("failed to seed training example %d: %v", i, err)
		}
	}
}
