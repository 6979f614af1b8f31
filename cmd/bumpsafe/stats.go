package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bumpsafe/bumpsafe/pkg/config"
	"github.com/bumpsafe/bumpsafe/pkg/store"
)

func newStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DBPath, cfg.History.Cap)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			users, history, err := st.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Users:           %d\nHistory entries: %d\n", users, history)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bumpsafe.yaml", "path to config file")
	return cmd
}
