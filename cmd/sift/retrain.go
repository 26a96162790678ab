package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/sift/internal/engine"
	"github.com/ledgerline/sift/internal/scheduler"
)

func retrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retrain",
		Short: "Retrain the classifier and record fresh model metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			eng := engine.New(store)
			if err := eng.Initialize(ctx); err != nil {
				return err
			}

			sched := scheduler.New(eng, store, nil)
			if err := sched.RunManualRetrain(ctx); err != nil {
				return err
			}

			version := eng.ModelVersion()
			if version == "" {
				fmt.Println("Retraining skipped: not enough verified training data.")
				return nil
			}

			fmt.Printf("Model %s trained on %d examples.\n", version, eng.TrainingSize())
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Println("Database is up to date.")
			return nil
		},
	}
}
