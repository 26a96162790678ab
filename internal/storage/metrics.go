package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/sift/internal/model"
)

// InsertModelMetrics appends a metrics snapshot. Snapshots are never
// mutated.
func (s *SQLiteStorage) InsertModelMetrics(ctx context.Context, m *model.ModelMetrics) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateModelMetrics(m); err != nil {
		return err
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ml_model_metrics
			(model_version, accuracy_score, precision_score, recall_score,
			 total_predictions, correct_predictions, training_data_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ModelVersion, m.AccuracyScore, m.PrecisionScore, m.RecallScore,
		m.TotalPredictions, m.CorrectPredictions, m.TrainingDataSize, m.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert model metrics: %w", err)
	}

	return nil
}

// LatestModelMetrics returns the most recent metrics snapshot, or
// (nil, nil) when none have been recorded.
func (s *SQLiteStorage) LatestModelMetrics(ctx context.Context) (*model.ModelMetrics, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var m model.ModelMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT model_version, accuracy_score, precision_score, recall_score,
		       total_predictions, correct_predictions, training_data_size, created_at
		FROM ml_model_metrics
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&m.ModelVersion, &m.AccuracyScore, &m.PrecisionScore, &m.RecallScore,
		&m.TotalPredictions, &m.CorrectPredictions, &m.TrainingDataSize, &m.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest model metrics: %w", err)
	}

	return &m, nil
}
