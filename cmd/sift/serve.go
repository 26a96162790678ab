package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/sift/internal/api"
	"github.com/ledgerline/sift/internal/engine"
	"github.com/ledgerline/sift/internal/scheduler"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the categorization API server and background scheduler",
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
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()

			addr := viper.GetString("server.addr")
			if addr == "" {
				addr = ":8090"
			}
			server := api.NewServer(addr, eng, sched)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(server.ListenAndServe)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			slog.Info("sift serving", "addr", addr)
			return g.Wait()
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8090)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}
