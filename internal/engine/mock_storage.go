package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/service"
)

// mockStorage is an in-memory service.Storage for engine tests. Error
// fields force specific gateway calls to fail.
type mockStorage struct {
	patternsErr  error
	rulesErr     error
	trainingErr  error
	feedbackErr  error
	historyErr   error
	patterns     []model.MerchantPattern
	rules        []model.DefaultRule
	training     []model.TrainingExample
	feedback     []model.FeedbackRecord
	metrics      []model.ModelMetrics
	transactions []model.Transaction
	patternLoads int
	mu           sync.Mutex
}

var _ service.Storage = (*mockStorage)(nil)

func newMockStorage() *mockStorage {
	return &mockStorage{}
}

func (m *mockStorage) ListMerchantPatterns(_ context.Context) ([]model.MerchantPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patternsErr != nil {
		return nil, m.patternsErr
	}
	m.patternLoads++
	out := make([]model.MerchantPattern, len(m.patterns))
	copy(out, m.patterns)
	return out, nil
}

func (m *mockStorage) GetMerchantPattern(_ context.Context, pattern string) (*model.MerchantPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patternsErr != nil {
		return nil, m.patternsErr
	}
	for i := range m.patterns {
		if strings.EqualFold(m.patterns[i].Pattern, pattern) {
			p := m.patterns[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (m *mockStorage) UpsertMerchantPattern(_ context.Context, p *model.MerchantPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patternsErr != nil {
		return m.patternsErr
	}
	for i := range m.patterns {
		if strings.EqualFold(m.patterns[i].Pattern, p.Pattern) {
			m.patterns[i] = *p
			return nil
		}
	}
	m.patterns = append(m.patterns, *p)
	return nil
}

func (m *mockStorage) DeleteWeakMerchantPatterns(_ context.Context, maxUsage int, maxConfidence float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.MerchantPattern
	var deleted int64
	for _, p := range m.patterns {
		if p.UsageCount < maxUsage && p.Confidence < maxConfidence {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	m.patterns = kept
	return deleted, nil
}

func (m *mockStorage) ListActiveDefaultRules(_ context.Context) ([]model.DefaultRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rulesErr != nil {
		return nil, m.rulesErr
	}
	var active []model.DefaultRule
	for _, r := range m.rules {
		if r.Active {
			active = append(active, r)
		}
	}
	return active, nil
}

func (m *mockStorage) InsertTrainingExample(_ context.Context, ex *model.TrainingExample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trainingErr != nil {
		return m.trainingErr
	}
	m.training = append(m.training, *ex)
	return nil
}

func (m *mockStorage) ListVerifiedTrainingExamples(_ context.Context) ([]model.TrainingExample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trainingErr != nil {
		return nil, m.trainingErr
	}
	var verified []model.TrainingExample
	for _, ex := range m.training {
		if ex.Verified {
			verified = append(verified, ex)
		}
	}
	return verified, nil
}

func (m *mockStorage) CountVerifiedTrainingExamples(ctx context.Context) (int, error) {
	examples, err := m.ListVerifiedTrainingExamples(ctx)
	if err != nil {
		return 0, err
	}
	return len(examples), nil
}

func (m *mockStorage) InsertFeedback(_ context.Context, fb *model.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feedbackErr != nil {
		return m.feedbackErr
	}
	m.feedback = append(m.feedback, *fb)
	return nil
}

func (m *mockStorage) ListFeedbackSince(_ context.Context, since time.Time) ([]model.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.FeedbackRecord
	for _, fb := range m.feedback {
		if !fb.CreatedAt.Before(since) {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (m *mockStorage) CountFeedbackSince(ctx context.Context, since time.Time) (int, error) {
	records, err := m.ListFeedbackSince(ctx, since)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (m *mockStorage) MerchantFeedbackSince(_ context.Context, since time.Time, minCount int) ([]service.MerchantFeedbackStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]map[string]int)
	for _, fb := range m.feedback {
		if fb.CreatedAt.Before(since) || fb.MerchantPattern == "" {
			continue
		}
		if counts[fb.MerchantPattern] == nil {
			counts[fb.MerchantPattern] = make(map[string]int)
		}
		counts[fb.MerchantPattern][fb.ActualCategory]++
	}

	var stats []service.MerchantFeedbackStats
	for merchant, byCategory := range counts {
		st := service.MerchantFeedbackStats{MerchantPattern: merchant}
		for category, n := range byCategory {
			st.Total += n
			if n > st.TopCategoryHits || (n == st.TopCategoryHits && category < st.TopCategory) {
				st.TopCategory = category
				st.TopCategoryHits = n
			}
		}
		if st.Total >= minCount {
			stats = append(stats, st)
		}
	}
	return stats, nil
}

func (m *mockStorage) DeleteFeedbackBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.FeedbackRecord
	var deleted int64
	for _, fb := range m.feedback {
		if fb.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, fb)
	}
	m.feedback = kept
	return deleted, nil
}

func (m *mockStorage) InsertModelMetrics(_ context.Context, metrics *model.ModelMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, *metrics)
	return nil
}

func (m *mockStorage) LatestModelMetrics(_ context.Context) (*model.ModelMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.metrics) == 0 {
		return nil, nil
	}
	latest := m.metrics[len(m.metrics)-1]
	return &latest, nil
}

func (m *mockStorage) ListUserTransactions(_ context.Context, userID string, limit int, _ service.HistorySelection) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	var out []model.Transaction
	for _, t := range m.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStorage) Migrate(_ context.Context) error { return nil }

func (m *mockStorage) Close() error { return nil }
