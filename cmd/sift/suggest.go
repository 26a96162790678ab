package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerline/sift/internal/engine"
)

func suggestCmd() *cobra.Command {
	var (
		amount          float64
		transactionType int
		userID          string
	)

	cmd := &cobra.Command{
		Use:   "suggest <description>",
		Short: "Suggest categories for a transaction description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			description := strings.Join(args, " ")
			suggestions := eng.SuggestCategory(ctx, description, amount, transactionType, userID)

			if len(suggestions) == 0 {
				fmt.Println("No suggestions.")
				return nil
			}

			for i, s := range suggestions {
				fmt.Printf("%d. %s (%.0f%%, %s)\n", i+1, s.Category, s.Confidence*100, s.Source)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "transaction amount")
	cmd.Flags().IntVar(&transactionType, "type", 1, "transaction type")
	cmd.Flags().StringVar(&userID, "user", "", "user id for history-based suggestions")

	return cmd
}
