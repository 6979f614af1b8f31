package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bumpsafe/bumpsafe/pkg/config"
	"github.com/bumpsafe/bumpsafe/pkg/models"
	"github.com/bumpsafe/bumpsafe/pkg/store"
)

func newUserCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts and tiers",
	}

	var (
		createEmail string
		createTier  string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print their access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if createEmail == "" {
				return fmt.Errorf("--email is required")
			}
			tier := models.Tier(createTier)
			if !tier.Valid() {
				return fmt.Errorf("invalid tier %q (free or premium)", createTier)
			}

			st, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			u, err := st.CreateUser(context.Background(), createEmail, tier)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s (%s)\nToken: %s\n", u.Email, u.Tier, u.Token)
			return nil
		},
	}
	createCmd.Flags().StringVar(&createEmail, "email", "", "user email")
	createCmd.Flags().StringVar(&createTier, "tier", "free", "subscription tier (free or premium)")

	var (
		tierEmail string
		tierValue string
	)
	tierCmd := &cobra.Command{
		Use:   "tier",
		Short: "Change a user's subscription tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tierEmail == "" {
				return fmt.Errorf("--email is required")
			}
			tier := models.Tier(tierValue)
			if !tier.Valid() {
				return fmt.Errorf("invalid tier %q (free or premium)", tierValue)
			}

			st, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.SetTier(context.Background(), tierEmail, tier); err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", tierEmail, tier)
			return nil
		},
	}
	tierCmd.Flags().StringVar(&tierEmail, "email", "", "user email")
	tierCmd.Flags().StringVar(&tierValue, "tier", "", "subscription tier (free or premium)")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "bumpsafe.yaml", "path to config file")
	cmd.AddCommand(createCmd, tierCmd)
	return cmd
}

func openStore(configPath string) (*store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return store.New(cfg.DBPath, cfg.History.Cap)
}
