package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/common"
)

var (
	// configFiles supports multiple --config flags; later files override earlier ones
	configFiles []string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "psuscan",
	Short: "Extract PSU price targets from Form 4 filings",
	Long: `psuscan scans a ticker list, reads recent Form 4 filings for each company and
extracts performance share unit (PSU) price targets, classifying them by upside
against the current share price.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil,
		"Configuration file path (can be specified multiple times, later files override earlier ones)")

	rootCmd.AddCommand(runCmd, progressCmd, resultsCmd, versionCmd)
}

func main() {
	common.InstallCrashHandler(common.LogDir)
	defer common.RecoverWithCrashFile(nil)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration and initializes the global logger.
// Order: defaults -> files -> .env -> env -> flags.
func loadConfig(flags common.FlagOverrides) error {
	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("psuscan.toml"); err == nil {
			configFiles = append(configFiles, "psuscan.toml")
		} else if _, err := os.Stat("deployments/local/psuscan.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/psuscan.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	common.ApplyFlagOverrides(config, flags)

	logger = common.InitLogger(config)

	if err := config.ResolveReferences(logger); err != nil {
		return fmt.Errorf("failed to resolve config references: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Bool("archive", config.Storage.Badger.Enabled).
		Msg("Resolved configuration")

	return nil
}
