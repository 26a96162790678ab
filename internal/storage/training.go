package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerline/sift/internal/model"
)

// InsertTrainingExample appends a training example. Examples are never
// updated in place.
func (s *SQLiteStorage) InsertTrainingExample(ctx context.Context, ex *model.TrainingExample) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTrainingExample(ex); err != nil {
		return err
	}

	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	featuresJSON, err := json.Marshal(ex.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ml_training_data (user_id, description, amount, category, transaction_type, features, verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ex.UserID, ex.Description, ex.Amount, ex.Category, ex.TransactionType, string(featuresJSON), ex.Verified, ex.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert training example: %w", err)
	}

	return nil
}

// ListVerifiedTrainingExamples returns every verified example, oldest first.
func (s *SQLiteStorage) ListVerifiedTrainingExamples(ctx context.Context) ([]model.TrainingExample, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, description, amount, category, transaction_type, features, verified, created_at
		FROM ml_training_data
		WHERE verified = 1
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list training examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var examples []model.TrainingExample
	for rows.Next() {
		var ex model.TrainingExample
		var featuresJSON string
		if err := rows.Scan(&ex.UserID, &ex.Description, &ex.Amount, &ex.Category, &ex.TransactionType, &featuresJSON, &ex.Verified, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training example: %w", err)
		}
		if featuresJSON != "" {
			if err := json.Unmarshal([]byte(featuresJSON), &ex.Features); err != nil {
				return nil, fmt.Errorf("failed to decode features: %w", err)
			}
		}
		examples = append(examples, ex)
	}

	return examples, rows.Err()
}

// CountVerifiedTrainingExamples returns the number of verified examples.
func (s *SQLiteStorage) CountVerifiedTrainingExamples(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ml_training_data WHERE verified = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count training examples: %w", err)
	}

	return count, nil
}
