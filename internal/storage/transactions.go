package storage

import (
	"context"
	"fmt"

	"github.com/ledgerline/sift/internal/model"
	"github.com/ledgerline/sift/internal/service"
)

// ListUserTransactions returns up to limit of a user's categorized
// transactions for the history similarity scan. The selection policy
// decides which rows win when more exist than the limit.
func (s *SQLiteStorage) ListUserTransactions(ctx context.Context, userID string, limit int, selection service.HistorySelection) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, permanent(ErrInvalidLimit)
	}

	var order string
	switch selection {
	case service.HistoryRecent:
		order = "ORDER BY date DESC"
	case service.HistoryArbitrary:
		order = "ORDER BY id ASC"
	default:
		return nil, permanent(fmt.Errorf("%w: %q", ErrInvalidSelection, selection))
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, description, amount, category, transaction_type, date
		FROM transactions
		WHERE user_id = ? AND category IS NOT NULL AND category != ''
		%s
		LIMIT ?
	`, order)

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.Amount, &t.Category, &t.TransactionType, &t.Date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

// SaveTransaction inserts or replaces a categorized transaction. The wider
// application owns transactions; this entry point exists for seeding and
// tests.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, t *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if err := validateString(t.ID, "transaction.ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, description, amount, category, transaction_type, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			category = excluded.category,
			transaction_type = excluded.transaction_type,
			date = excluded.date
	`, t.ID, t.UserID, t.Description, t.Amount, t.Category, t.TransactionType, t.Date)

	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	return nil
}
