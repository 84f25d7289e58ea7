package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kilianp07/vendpoint/api"
	"github.com/kilianp07/vendpoint/core/directory"
	"github.com/kilianp07/vendpoint/core/dispatch"
	"github.com/kilianp07/vendpoint/core/model"
	"github.com/kilianp07/vendpoint/infra/logger"
	_ "github.com/kilianp07/vendpoint/infra/ranking"
	"github.com/kilianp07/vendpoint/infra/responder"
)

var errAllFailed = errors.New("all responders failed")

var queryOpts struct {
	messages []string
	uids     []int
	topK     int
	parallel int
	attempts int
	timeout  time.Duration
	first    bool
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Dispatch one prompt without the HTTP server and print the result",
	Example: `  vendpoint query -m "system:be brief" -m "user:hello" --top-k 3
  vendpoint query -m "user:hello" --uid 12 --uid 40 --first`,
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.StringArrayVarP(&queryOpts.messages, "message", "m", nil, "prompt message as role:content, repeatable")
	f.IntSliceVar(&queryOpts.uids, "uid", nil, "explicit responder uid, repeatable")
	f.IntVar(&queryOpts.topK, "top-k", -1, "number of top ranked responders, -1 uses the configured default")
	f.IntVar(&queryOpts.parallel, "parallel", 0, "sub-requests in flight, 0 uses the configured default")
	f.IntVar(&queryOpts.attempts, "attempts", -1, "attempt budget, -1 uses the configured default")
	f.DurationVar(&queryOpts.timeout, "timeout", 0, "per sub-request timeout, 0 uses the configured default")
	f.BoolVar(&queryOpts.first, "first", false, "stop at the first successful reply")
	_ = queryCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(queryCmd)
}

// parseMessages turns role:content pairs into prompt messages.
func parseMessages(raw []string) ([]model.Message, error) {
	msgs := make([]model.Message, 0, len(raw))
	for _, m := range raw {
		role, content, ok := strings.Cut(m, ":")
		if !ok {
			return nil, fmt.Errorf("message %q: expected role:content", m)
		}
		r := model.Role(strings.ToLower(strings.TrimSpace(role)))
		if !r.Valid() {
			return nil, fmt.Errorf("message %q: unknown role %q", m, role)
		}
		msgs = append(msgs, model.Message{Role: r, Content: content})
	}
	return msgs, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prompt, err := parseMessages(queryOpts.messages)
	if err != nil {
		return err
	}

	log := logger.New("query")
	src, err := directory.NewSource(cfg.Directory.Source)
	if err != nil {
		return fmt.Errorf("ranking source: %w", err)
	}
	if c, ok := src.(interface{ Close() }); ok {
		defer c.Close()
	}
	syncer, err := directory.NewSyncer(src, cfg.Directory, log, nil)
	if err != nil {
		return err
	}
	if err := syncer.Sync(ctx); err != nil {
		if len(queryOpts.uids) == 0 {
			return fmt.Errorf("ranking: %w", err)
		}
		log.Warnf("ranking unavailable, explicit uids use the default endpoint: %v", err)
	}
	engine, err := dispatch.NewEngine(responder.NewHTTPClient(cfg.Responder, nil), syncer, log, nil)
	if err != nil {
		return err
	}

	d := cfg.Dispatch
	req := dispatch.Request{
		CorrelationID:      uuid.NewString(),
		Prompt:             prompt,
		TopK:               d.TopK,
		Parallelism:        d.Parallelism,
		AttemptBudget:      d.AttemptBudget,
		Timeout:            d.Timeout(),
		StopOnFirstSuccess: d.StopOnFirstSuccess || queryOpts.first,
	}
	if len(queryOpts.uids) > 0 {
		req.TopK = 0
		req.Candidates = syncer.Resolve(queryOpts.uids)
	}
	if queryOpts.topK >= 0 {
		req.TopK = queryOpts.topK
	}
	if queryOpts.parallel > 0 {
		req.Parallelism = queryOpts.parallel
	}
	if queryOpts.attempts >= 0 {
		req.AttemptBudget = queryOpts.attempts
	}
	if queryOpts.timeout > 0 {
		req.Timeout = queryOpts.timeout
	}

	out, err := engine.Run(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(api.NewChatResponse(out)); err != nil {
		return err
	}
	if out.AllFailed {
		return errAllFailed
	}
	return nil
}
