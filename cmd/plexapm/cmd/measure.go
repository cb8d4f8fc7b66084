package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexapm"
)

var (
	measureName  string
	drainTimeout time.Duration
)

var measureCmd = &cobra.Command{
	Use:   "measure [flags] -- command [args...]",
	Short: "Run a command and report it as a job",
	Long: "Run a command and report its runtime to the collector as a job sample.\n" +
		"A non-zero exit status is reported as the job's error and returned.",
	Args: cobra.MinimumNArgs(1),
	RunE: runMeasure,
}

func init() {
	measureCmd.Flags().StringVar(&measureName, "name", "", "job name (default: the command line)")
	measureCmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 30*time.Second, "time to wait for the sample to be sent")
	rootCmd.AddCommand(measureCmd)
}

func runMeasure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("plexapm measure: %w", err)
	}
	client, err := plexapm.New(*cfg, plexapm.Options{Version: buildVersion})
	if err != nil {
		return fmt.Errorf("plexapm measure: %w", err)
	}

	name := measureName
	if name == "" {
		name = strings.Join(args, " ")
	}
	runErr := client.MeasureJob(cmd.Context(), name, func(ctx context.Context) error {
		c := exec.CommandContext(ctx, args[0], args[1:]...)
		c.Stdin = os.Stdin
		c.Stdout = cmd.OutOrStdout()
		c.Stderr = cmd.ErrOrStderr()
		return c.Run()
	})

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		client.Logger().Warn("sample not sent before exit", "error", err)
	}
	return runErr
}
