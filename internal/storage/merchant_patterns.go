package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/sift/internal/model"
)

// ListMerchantPatterns returns all merchant patterns ordered by confidence
// descending. The returned order is the engine's scan order.
func (s *SQLiteStorage) ListMerchantPatterns(ctx context.Context) ([]model.MerchantPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern, category, confidence, usage_count, updated_at
		FROM merchant_patterns
		ORDER BY confidence DESC, pattern ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list merchant patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.MerchantPattern
	for rows.Next() {
		var p model.MerchantPattern
		if err := rows.Scan(&p.Pattern, &p.Category, &p.Confidence, &p.UsageCount, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merchant pattern: %w", err)
		}
		patterns = append(patterns, p)
	}

	return patterns, rows.Err()
}

// GetMerchantPattern retrieves a single pattern by its case-insensitive
// key. Returns (nil, nil) when no row exists.
func (s *SQLiteStorage) GetMerchantPattern(ctx context.Context, pattern string) (*model.MerchantPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}

	var p model.MerchantPattern
	err := s.db.QueryRowContext(ctx, `
		SELECT pattern, category, confidence, usage_count, updated_at
		FROM merchant_patterns
		WHERE pattern = ? COLLATE NOCASE
	`, pattern).Scan(&p.Pattern, &p.Category, &p.Confidence, &p.UsageCount, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant pattern: %w", err)
	}

	return &p, nil
}

// UpsertMerchantPattern inserts or fully replaces a merchant pattern row.
func (s *SQLiteStorage) UpsertMerchantPattern(ctx context.Context, p *model.MerchantPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMerchantPattern(p); err != nil {
		return err
	}

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_patterns (pattern, category, confidence, usage_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			category = excluded.category,
			confidence = excluded.confidence,
			usage_count = excluded.usage_count,
			updated_at = excluded.updated_at
	`, p.Pattern, p.Category, p.Confidence, p.UsageCount, p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert merchant pattern: %w", err)
	}

	return nil
}

// DeleteWeakMerchantPatterns removes patterns below both the usage and
// confidence floors. Returns the number of rows deleted.
func (s *SQLiteStorage) DeleteWeakMerchantPatterns(ctx context.Context, maxUsage int, maxConfidence float64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM merchant_patterns
		WHERE usage_count < ? AND confidence < ?
	`, maxUsage, maxConfidence)
	if err != nil {
		return 0, fmt.Errorf("failed to delete weak merchant patterns: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted patterns: %w", err)
	}

	return deleted, nil
}
