package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "integra",
	Short: "Deploy player packages to a fleet of devices",
	Long: `Integra deploys the newest matching package to Windows, macOS, Linux,
Android, signage and web devices from a single control point.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		return configureLogging(level)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// configureLogging installs the process-wide slog logger. Device output goes
// through the log sink; slog carries diagnostics only.
func configureLogging(level string) error {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "warn":
		l = slog.LevelWarn
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q", level)
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(h))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (default: config.yaml next to the binary or in the working directory)")
	rootCmd.PersistentFlags().String("log-level", "warn", "diagnostic log level: debug, info, warn, error")
}
