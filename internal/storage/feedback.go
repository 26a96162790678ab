package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/service"
)

// InsertFeedback appends a feedback record to the audit trail.
func (s *SQLiteStorage) InsertFeedback(ctx context.Context, fb *model.FeedbackRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFeedback(fb); err != nil {
		return err
	}

	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categorization_feedback
			(id, user_id, description, suggested_category, actual_category, was_accepted,
			 confidence, amount, transaction_type, merchant_pattern, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, fb.ID, fb.UserID, fb.Description, fb.SuggestedCategory, fb.ActualCategory, fb.WasAccepted,
		fb.Confidence, fb.Amount, fb.TransactionType, fb.MerchantPattern, fb.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	return nil
}

// ListFeedbackSince returns all feedback created at or after the given time,
// oldest first.
func (s *SQLiteStorage) ListFeedbackSince(ctx context.Context, since time.Time) ([]model.FeedbackRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, description, suggested_category, actual_category, was_accepted,
		       confidence, amount, transaction_type, merchant_pattern, created_at
		FROM categorization_feedback
		WHERE created_at >= ?
		ORDER BY created_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.FeedbackRecord
	for rows.Next() {
		var fb model.FeedbackRecord
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Description, &fb.SuggestedCategory, &fb.ActualCategory,
			&fb.WasAccepted, &fb.Confidence, &fb.Amount, &fb.TransactionType, &fb.MerchantPattern, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		records = append(records, fb)
	}

	return records, rows.Err()
}

// CountFeedbackSince returns the number of feedback rows created at or
// after the given time.
func (s *SQLiteStorage) CountFeedbackSince(ctx context.Context, since time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM categorization_feedback WHERE created_at >= ?
	`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	return count, nil
}

// MerchantFeedbackSince aggregates feedback by merchant key for the
// pattern refresh job: per merchant, the total feedback count and the most
// frequent actual category with its count. Merchants with fewer than
// minCount rows are excluded, as are rows without a merchant key.
func (s *SQLiteStorage) MerchantFeedbackSince(ctx context.Context, since time.Time, minCount int) ([]service.MerchantFeedbackStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if minCount <= 0 {
		return nil, permanent(ErrInvalidLimit)
	}

	// Two-level aggregation: per (merchant, category) counts, then the top
	// category per merchant, filtered by the per-merchant total.
	rows, err := s.db.QueryContext(ctx, `
		SELECT merchant_pattern, actual_category, category_count, total_count
		FROM (
			SELECT merchant_pattern,
			       actual_category,
			       COUNT(*) AS category_count,
			       SUM(COUNT(*)) OVER (PARTITION BY merchant_pattern) AS total_count,
			       ROW_NUMBER() OVER (
			           PARTITION BY merchant_pattern
			           ORDER BY COUNT(*) DESC, actual_category ASC
			       ) AS rank
			FROM categorization_feedback
			WHERE created_at >= ? AND merchant_pattern IS NOT NULL AND merchant_pattern != ''
			GROUP BY merchant_pattern, actual_category
		)
		WHERE rank = 1 AND total_count >= ?
		ORDER BY merchant_pattern ASC
	`, since, minCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate merchant feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []service.MerchantFeedbackStats
	for rows.Next() {
		var st service.MerchantFeedbackStats
		if err := rows.Scan(&st.MerchantPattern, &st.TopCategory, &st.TopCategoryHits, &st.Total); err != nil {
			return nil, fmt.Errorf("failed to scan merchant feedback stats: %w", err)
		}
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

// DeleteFeedbackBefore removes feedback older than the cutoff. Returns the
// number of rows deleted.
func (s *SQLiteStorage) DeleteFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM categorization_feedback WHERE created_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old feedback: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted feedback: %w", err)
	}

	return deleted, nil
}
