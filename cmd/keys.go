package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/ratelimit"
	"github.com/kilianp07/vendpoint/infra/store"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage API keys",
}

var keyOpts struct {
	name       string
	key        string
	credits    int64
	validUntil string
	enabled    bool
	user       string
}

func init() {
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a key; unset fields default to unlimited credits and no expiry",
		Args:  cobra.NoArgs,
		RunE:  keyCreate,
	}
	create.Flags().StringVar(&keyOpts.name, "name", "", "display name")
	create.Flags().StringVar(&keyOpts.key, "key", "", "explicit key value, generated when empty")
	create.Flags().Int64Var(&keyOpts.credits, "credits", -1, "credit balance, -1 is unlimited")
	create.Flags().StringVar(&keyOpts.validUntil, "valid-until", "", "expiry as RFC3339 or unix seconds")
	create.Flags().StringVar(&keyOpts.user, "user", "", "owning user id, registered when new")

	update := &cobra.Command{
		Use:   "update <id|key>",
		Short: "Change the fields given as flags",
		Args:  cobra.ExactArgs(1),
		RunE:  keyUpdate,
	}
	update.Flags().StringVar(&keyOpts.name, "name", "", "display name")
	update.Flags().Int64Var(&keyOpts.credits, "credits", -1, "credit balance, -1 is unlimited")
	update.Flags().StringVar(&keyOpts.validUntil, "valid-until", "", "expiry as RFC3339, unix seconds or never")
	update.Flags().BoolVar(&keyOpts.enabled, "enabled", true, "enable or disable the key")

	keyCmd.AddCommand(
		create,
		&cobra.Command{Use: "list", Short: "List keys, newest first", Args: cobra.NoArgs, RunE: keyList},
		&cobra.Command{Use: "get <id|key>", Short: "Show one key", Args: cobra.ExactArgs(1), RunE: keyGet},
		update,
		&cobra.Command{Use: "delete <id|key>", Short: "Delete a key", Args: cobra.ExactArgs(1), RunE: keyDelete},
	)
	rootCmd.AddCommand(keyCmd)
}

func openStore() (*store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.Store.Path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseExpiry accepts RFC3339, unix seconds or "never".
func parseExpiry(s string) (int64, error) {
	if strings.EqualFold(s, "never") {
		return ledger.NeverExpires, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("valid-until %q: expected RFC3339, unix seconds or never", s)
	}
	return t.Unix(), nil
}

// parseRule reads a limit written as times/seconds, e.g. 100/60.
func parseRule(s string) (ratelimit.Rule, error) {
	times, secs, ok := strings.Cut(s, "/")
	if !ok {
		return ratelimit.Rule{}, fmt.Errorf("rule %q: expected times/seconds", s)
	}
	t, err := strconv.Atoi(strings.TrimSpace(times))
	if err != nil {
		return ratelimit.Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}
	sec, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(secs, "s")))
	if err != nil {
		return ratelimit.Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}
	r := ratelimit.Rule{Times: t, Seconds: sec}
	return r, r.Validate()
}

func keyCreate(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	nk := ledger.NewKey{Key: keyOpts.key, Name: keyOpts.name, UserID: keyOpts.user}
	if nk.UserID != "" {
		if _, err := st.EnsureUser(cmd.Context(), nk.UserID); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("credits") {
		nk.Credits = &keyOpts.credits
	}
	if keyOpts.validUntil != "" {
		v, err := parseExpiry(keyOpts.validUntil)
		if err != nil {
			return err
		}
		nk.ValidUntil = &v
	}
	k, err := st.Create(cmd.Context(), nk)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), k)
}

func keyList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	keys, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), keys)
}

func keyGet(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	k, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), k)
}

func keyUpdate(cmd *cobra.Command, args []string) error {
	var p ledger.Patch
	flags := cmd.Flags()
	if flags.Changed("name") {
		p.Name = &keyOpts.name
	}
	if flags.Changed("credits") {
		p.Credits = &keyOpts.credits
	}
	if flags.Changed("enabled") {
		p.Enabled = &keyOpts.enabled
	}
	if flags.Changed("valid-until") {
		v, err := parseExpiry(keyOpts.validUntil)
		if err != nil {
			return err
		}
		p.ValidUntil = &v
	}
	return patchKey(cmd, args[0], p)
}

func patchKey(cmd *cobra.Command, query string, p ledger.Patch) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	k, err := st.Update(cmd.Context(), query, p)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), k)
}

func keyDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}
