package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vendpoint/api"
	"github.com/kilianp07/vendpoint/core/ledger"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userOpts struct {
	isAdmin bool
	enabled bool
	ttl     time.Duration
}

func init() {
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change --is-admin or --enabled of a user",
		Args:  cobra.ExactArgs(1),
		RunE:  userEdit,
	}
	edit.Flags().BoolVar(&userOpts.isAdmin, "is-admin", false, "grant or revoke admin, e.g. --is-admin=false")
	edit.Flags().BoolVar(&userOpts.enabled, "enabled", true, "enable or disable the user")

	token := &cobra.Command{
		Use:   "token <id>",
		Short: "Issue a user token, registering the user when new",
		Args:  cobra.ExactArgs(1),
		RunE:  userToken,
	}
	token.Flags().DurationVar(&userOpts.ttl, "ttl", 24*time.Hour, "token lifetime")

	userCmd.AddCommand(
		&cobra.Command{Use: "list", Short: "List users, newest first", Args: cobra.NoArgs, RunE: userList},
		edit,
		token,
	)
	rootCmd.AddCommand(userCmd)
}

func userList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if users == nil {
		users = []ledger.User{}
	}
	return printJSON(cmd.OutOrStdout(), users)
}

func userEdit(cmd *cobra.Command, args []string) error {
	var p ledger.UserPatch
	if cmd.Flags().Changed("is-admin") {
		p.IsAdmin = &userOpts.isAdmin
	}
	if cmd.Flags().Changed("enabled") {
		p.Enabled = &userOpts.enabled
	}
	if p.IsAdmin == nil && p.Enabled == nil {
		return errors.New("nothing to change: pass --is-admin or --enabled")
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	u, err := st.UpdateUser(cmd.Context(), args[0], p)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), u)
}

func userToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.UserSecret == "" {
		return errors.New("server.user_secret is not configured")
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if _, err := st.EnsureUser(cmd.Context(), args[0]); err != nil {
		return err
	}
	tok, err := api.IssueUserToken(cfg.Server.UserSecret, args[0], userOpts.ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
