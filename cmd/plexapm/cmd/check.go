package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexapm/internal/api"
	"github.com/plexsphere/plexapm/internal/sample"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the collector accepts the configured credentials",
	Long: "Post an empty job sample to the collector and wait for the answer.\n" +
		"Unlike the client, which sends in the background and only logs failures,\n" +
		"check reports the outcome and exits non-zero when the collector refuses.",
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "time to wait for the collector")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("plexapm check: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	collector, err := api.NewCollector(api.Config{
		BaseURL:        cfg.APIURL,
		AppID:          cfg.AppID,
		APIKey:         cfg.APIKey,
		CAFile:         cfg.CAFile,
		ConnectTimeout: cfg.ConnectTimeout,
		RequestTimeout: cfg.RequestTimeout,
	}, buildVersion, logger)
	if err != nil {
		return fmt.Errorf("plexapm check: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	probe := sample.JobPayload{Job: sample.JobSample{
		Name:      "plexapm check",
		StartedAt: time.Now().UnixMilli(),
		Queries:   []sample.QueryStat{},
		Sections:  []sample.Section{},
	}}
	start := time.Now()
	if err := collector.PostJSON(ctx, sample.PathJobs, probe, nil); err != nil {
		return fmt.Errorf("plexapm check: %s: %w", hint(err), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok: %s accepted the probe in %s\n",
		collector.BaseURL(), time.Since(start).Round(time.Millisecond))
	return nil
}

// hint turns collector errors into a short operator-facing diagnosis.
func hint(err error) string {
	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrForbidden):
		return "credentials rejected, check app_id and api_key"
	case errors.Is(err, api.ErrNotFound):
		return "endpoint not found, check api_url"
	case errors.Is(err, api.ErrRateLimit):
		return "rate limited"
	case errors.Is(err, api.ErrServer):
		return "collector error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return "collector unreachable"
	}
}
