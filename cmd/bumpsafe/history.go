package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bumpsafe/bumpsafe/pkg/config"
	"github.com/bumpsafe/bumpsafe/pkg/store"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		email      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a user's recent safety checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DBPath, cfg.History.Cap)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ctx := context.Background()
			u, err := st.UserByEmail(ctx, email)
			if err != nil {
				return err
			}

			entries, err := st.History(ctx, u.ID, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No checks found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tITEM\tRISK\tIMAGE")
			for _, e := range entries {
				img := ""
				if e.IsImage {
					img = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					e.CreatedAt.Format("2006-01-02T15:04:05"), e.Item, e.RiskScore, img)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bumpsafe.yaml", "path to config file")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show")
	return cmd
}
