package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vendpoint/api"
)

var tokenOpts struct {
	subject string
	ttl     time.Duration
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative helpers",
}

var adminTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the /admin routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Server.AdminSecret == "" {
			return errors.New("server.admin_secret is not configured")
		}
		tok, err := api.IssueAdminToken(cfg.Server.AdminSecret, tokenOpts.subject, tokenOpts.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	adminTokenCmd.Flags().StringVar(&tokenOpts.subject, "subject", "cli", "token subject")
	adminTokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour, "token lifetime")
	adminCmd.AddCommand(adminTokenCmd)
	rootCmd.AddCommand(adminCmd)
}
