package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/ratelimit"
)

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Manage per key rate limits",
}

func init() {
	rateLimitCmd.AddCommand(
		&cobra.Command{
			Use:     "set <id|key> <times/seconds>...",
			Short:   "Replace the key's rules and enable them",
			Example: "  vendpoint ratelimit set 3 10/1 1000/3600",
			Args:    cobra.MinimumNArgs(1),
			RunE:    rateLimitSet,
		},
		&cobra.Command{
			Use:   "enable <id|key>",
			Short: "Apply the key's own rules instead of the global ones",
			Args:  cobra.ExactArgs(1),
			RunE:  rateLimitToggle(true),
		},
		&cobra.Command{
			Use:   "disable <id|key>",
			Short: "Fall back to the global rules",
			Args:  cobra.ExactArgs(1),
			RunE:  rateLimitToggle(false),
		},
	)
	rootCmd.AddCommand(rateLimitCmd)
}

func rateLimitSet(cmd *cobra.Command, args []string) error {
	rules := make([]ratelimit.Rule, 0, len(args)-1)
	for _, a := range args[1:] {
		r, err := parseRule(a)
		if err != nil {
			return err
		}
		rules = append(rules, r)
	}
	enabled := true
	return patchKey(cmd, args[0], ledger.Patch{RateLimits: &rules, RateLimitsEnabled: &enabled})
}

func rateLimitToggle(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return patchKey(cmd, args[0], ledger.Patch{RateLimitsEnabled: &enabled})
	}
}
