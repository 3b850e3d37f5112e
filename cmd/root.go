// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/tzspd/internal/config"
	_ "firestige.xyz/tzspd/plugins" // built-in capture plan actions
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tzspd",
	Short: "tzspd - TZSP capture collector",
	Long: `tzspd receives TZSP-encapsulated frames from remote sniffers (switch port
mirrors, wireless access points), dissects them down to the transport layer
and runs each frame through the capture plan of its listening profile.

Capture plan actions:
  - sip:            parse SIP signaling and label the message
  - require_parsed: drop frames whose transport layer was not located
  - log:            write a line per message to the process log
  - hep:            forward to a HEPv3 collector (Homer)
  - kafka:          publish a JSON record to Kafka`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (built-in single profile on :37008 when empty)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads --config, falling back to the built-in configuration.
func loadConfig() (*config.GlobalConfig, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.Load(configFile)
}
