package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plexsphere/plexapm"
	"github.com/plexsphere/plexapm/internal/fsutil"
)

var (
	initAppID   string
	initAPIKey  string
	initAppRoot string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: "Write a configuration file holding the given credentials and every default\n" +
		"spelled out, at the --config path. An existing file is kept unless --force is set.",
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initAppID, "app-id", "", "application id")
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "application API key")
	initCmd.Flags().StringVar(&initAppRoot, "app-root", "", "application source root")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg := plexapm.Config{
		AppID:   initAppID,
		APIKey:  initAPIKey,
		AppRoot: initAppRoot,
		APIURL:  apiURL,
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("plexapm init: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("plexapm init: marshal: %w", err)
	}
	if err := fsutil.WriteFileAtomic(cfgFile, out, 0o600, initForce); err != nil {
		return fmt.Errorf("plexapm init: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgFile)
	return nil
}
