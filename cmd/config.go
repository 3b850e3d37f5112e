package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Load and validate the configuration, apply defaults and environment
overrides, and print the result as YAML.

Examples:
  tzspd config
  TZSPD_LOG_LEVEL=debug tzspd config -c tzspd.yml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"tzspd": cfg}); err != nil {
			return err
		}
		return enc.Close()
	},
}
