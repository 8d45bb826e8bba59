package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/maintenance-auth/internal/config"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete ledger rows of expired tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, config.RedisConfig{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.svc.Prune(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("pruned %d expired tokens\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
