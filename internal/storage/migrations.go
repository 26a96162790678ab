package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS merchant_patterns (
					pattern TEXT PRIMARY KEY COLLATE NOCASE,
					category TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					usage_count INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS default_category_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					rule_type TEXT NOT NULL,
					rule_value TEXT NOT NULL,
					category TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					transaction_type INTEGER NOT NULL DEFAULT 1,
					active INTEGER NOT NULL DEFAULT 1,
					UNIQUE(rule_type, rule_value, transaction_type)
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					description TEXT NOT NULL,
					amount REAL NOT NULL,
					category TEXT,
					transaction_type INTEGER NOT NULL DEFAULT 1,
					date DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS categorization_feedback (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					description TEXT NOT NULL,
					suggested_category TEXT,
					actual_category TEXT NOT NULL,
					was_accepted INTEGER NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					amount REAL NOT NULL DEFAULT 0,
					merchant_pattern TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS ml_training_data (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					description TEXT NOT NULL,
					amount REAL NOT NULL DEFAULT 0,
					category TEXT NOT NULL,
					transaction_type INTEGER NOT NULL DEFAULT 1,
					features TEXT,
					verified INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS ml_model_metrics (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					model_version TEXT NOT NULL,
					accuracy_score REAL NOT NULL DEFAULT 0,
					precision_score REAL NOT NULL DEFAULT 0,
					recall_score REAL NOT NULL DEFAULT 0,
					total_predictions INTEGER NOT NULL DEFAULT 0,
					correct_predictions INTEGER NOT NULL DEFAULT 0,
					training_data_size INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Query indexes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_merchant_patterns_confidence ON merchant_patterns(confidence DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_rules_active ON default_category_rules(active, confidence DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_feedback_created ON categorization_feedback(created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_feedback_merchant ON categorization_feedback(merchant_pattern)`,
				`CREATE INDEX IF NOT EXISTS idx_training_verified ON ml_training_data(verified)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, date DESC)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Track transaction type on feedback",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE categorization_feedback ADD COLUMN transaction_type INTEGER NOT NULL DEFAULT 1`)
			if err != nil {
				return fmt.Errorf("failed to add transaction_type column: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
