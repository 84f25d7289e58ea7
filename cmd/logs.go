package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vendpoint/core/requestlog"
	"github.com/kilianp07/vendpoint/pkg/export"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the request log",
}

var logOpts struct {
	since         time.Duration
	uid           int
	success       bool
	keyHint       string
	correlationID string
	limit         int
	format        string
}

func init() {
	query := &cobra.Command{
		Use:   "query",
		Short: "Print matching records as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE:  logsQuery,
	}
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize matching records",
		Args:  cobra.NoArgs,
		RunE:  logsStats,
	}
	for _, c := range []*cobra.Command{query, stats} {
		f := c.Flags()
		f.DurationVar(&logOpts.since, "since", 0, "only records newer than this, e.g. 1h")
		f.IntVar(&logOpts.uid, "uid", 0, "filter by responder uid")
		f.BoolVar(&logOpts.success, "success", false, "filter by outcome")
		f.StringVar(&logOpts.keyHint, "key-hint", "", "filter by API key hint")
		f.StringVar(&logOpts.correlationID, "correlation-id", "", "filter by inbound call")
	}
	query.Flags().StringVar(&logOpts.format, "format", "json", "output format: json or csv")
	query.Flags().IntVar(&logOpts.limit, "limit", 100, "most recent records to print, 0 prints all")
	logsCmd.AddCommand(query, stats)
	rootCmd.AddCommand(logsCmd)
}

func buildLogQuery(cmd *cobra.Command) requestlog.Query {
	q := requestlog.Query{
		KeyHint:       logOpts.keyHint,
		CorrelationID: logOpts.correlationID,
	}
	if logOpts.since > 0 {
		q.Start = time.Now().Add(-logOpts.since)
	}
	if cmd.Flags().Changed("uid") {
		uid := logOpts.uid
		q.UID = &uid
	}
	if cmd.Flags().Changed("success") {
		ok := logOpts.success
		q.Success = &ok
	}
	if f := cmd.Flags().Lookup("limit"); f != nil {
		q.Limit = logOpts.limit
	}
	return q
}

func readLogs(cmd *cobra.Command) ([]requestlog.Record, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := requestlog.Open(cfg.RequestLog)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Query(cmd.Context(), buildLogQuery(cmd))
}

func logsQuery(cmd *cobra.Command, args []string) error {
	recs, err := readLogs(cmd)
	if err != nil {
		return err
	}
	return export.Write(cmd.OutOrStdout(), logOpts.format, recs)
}

func logsStats(cmd *cobra.Command, args []string) error {
	recs, err := readLogs(cmd)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), requestlog.Summarize(recs))
}
