package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/common"
)

// consoleLogs marks commands that keep stdout logging; the others print
// their own output and log to file only
const consoleLogs = "console-logs"

var (
	// Command-line flags
	configFiles []string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "usagebar",
	Short:         "Show Claude plan usage from a copied browser session",
	Long:          `Usagebar polls the claude.ai usage endpoint with credentials taken from a copied curl command and shows the 5-hour and 7-day quota windows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil,
		"Configuration file path (can be specified multiple times, later files override earlier ones)")

	rootCmd.AddCommand(serveCmd, setCurlCmd, fetchCmd, watchCmd, statusCmd, historyCmd, versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		common.GetLogger().Error().Err(err).Msg("Command failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup runs before every command:
// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
// 2. Initialize logger
// 3. Install crash handler
func setup(cmd *cobra.Command) error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("usagebar.toml"); err == nil {
			configFiles = append(configFiles, "usagebar.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		if len(configFiles) == 0 {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return fmt.Errorf("failed to load configuration files %s: %w", strings.Join(configFiles, ", "), err)
	}

	if cmd.Annotations[consoleLogs] == "" {
		config.Logging.Output = slices.DeleteFunc(config.Logging.Output, func(output string) bool {
			return output == "stdout" || output == "console"
		})
	}

	logger = common.InitLogger(config)

	common.InstallCrashHandler(common.LogsDir())
	common.SetCrashContext("command", cmd.CommandPath())
	common.SetCrashContext("config_files", strings.Join(configFiles, ", "))
	common.SetCrashContext("version", common.LoadVersionFromFile())

	logger.Debug().
		Str("command", cmd.CommandPath()).
		Strs("config_files", configFiles).
		Str("credentials_path", config.Storage.CredentialsPath).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Msg("Resolved configuration (sanitized)")

	return nil
}
