package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bumpsafe/bumpsafe/pkg/audit"
	cachepkg "github.com/bumpsafe/bumpsafe/pkg/cache"
	"github.com/bumpsafe/bumpsafe/pkg/config"
	"github.com/bumpsafe/bumpsafe/pkg/quota"
	"github.com/bumpsafe/bumpsafe/pkg/reasoner"
	"github.com/bumpsafe/bumpsafe/pkg/server"
	"github.com/bumpsafe/bumpsafe/pkg/store"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the safety checker API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; config expands ${VARS} from it.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			st, err := store.New(cfg.DBPath, cfg.History.Cap)
			if err != nil {
				return fmt.Errorf("init store: %w", err)
			}
			defer func() { _ = st.Close() }()

			var cache *cachepkg.Cache
			if cfg.Cache.Enabled {
				cache = cachepkg.New(cfg.Cache.TTL, cfg.Cache.SweepThreshold)
			}

			var auditor *audit.Logger
			if cfg.Audit.Enabled {
				auditor, err = audit.New(cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit: %w", err)
				}
				defer func() { _ = auditor.Close() }()
			}

			users := quota.NewUserQuota(st, cfg.Quota.FreeDailyLimit)
			trial := quota.NewTrialStore(cfg.Quota.TrialDailyLimit)
			client := reasoner.New(cfg.Reasoner)

			srv := server.New(cfg, st, cache, users, trial, client, auditor)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("starting bumpsafe with config: %s", configPath)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bumpsafe.yaml", "path to config file")
	return cmd
}
