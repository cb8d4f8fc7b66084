package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const maskedSecret = "*****"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after environment overrides and defaults, as YAML. The API key is masked.",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("plexapm config: %w", err)
	}
	if cfg.APIKey != "" {
		cfg.APIKey = maskedSecret
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("plexapm config: marshal: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
