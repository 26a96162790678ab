package storage

import (
	"context"
	"fmt"

	"github.com/ledgerline/sift/internal/model"
)

// ListActiveDefaultRules returns all active default rules ordered by
// confidence descending. Rules are authored externally; the core never
// writes this table.
func (s *SQLiteStorage) ListActiveDefaultRules(ctx context.Context) ([]model.DefaultRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_type, rule_value, category, confidence, transaction_type, active
		FROM default_category_rules
		WHERE active = 1
		ORDER BY confidence DESC, rule_value ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list default rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.DefaultRule
	for rows.Next() {
		var r model.DefaultRule
		if err := rows.Scan(&r.RuleType, &r.RuleValue, &r.Category, &r.Confidence, &r.TransactionType, &r.Active); err != nil {
			return nil, fmt.Errorf("failed to scan default rule: %w", err)
		}
		rules = append(rules, r)
	}

	return rules, rows.Err()
}

// SeedDefaultRule inserts a rule row, primarily for migrations, seeding
// scripts, and tests. The engine itself treats rules as read-only.
func (s *SQLiteStorage) SeedDefaultRule(ctx context.Context, r *model.DefaultRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO default_category_rules (rule_type, rule_value, category, confidence, transaction_type, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_type, rule_value, transaction_type) DO UPDATE SET
			category = excluded.category,
			confidence = excluded.confidence,
			active = excluded.active
	`, r.RuleType, r.RuleValue, r.Category, r.Confidence, r.TransactionType, r.Active)

	if err != nil {
		return fmt.Errorf("failed to seed default rule: %w", err)
	}

	return nil
}
