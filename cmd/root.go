package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Skarlso/drone-pilot/internal/config"
	"github.com/Skarlso/drone-pilot/internal/logging"
)

// Version is the application version.
const Version = "0.1.0"

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg and logger are set up in PersistentPreRunE for every subcommand.
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "dronepilot",
	Short:   "Fly a Tello by hand or let it follow the closest face",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		l, err := logging.New(os.Stderr, level, logFormat)
		if err != nil {
			return err
		}
		logger = l.With("session", uuid.NewString())

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command. Ctrl+C or SIGTERM cancel the command context, which
// lands the drone before exiting.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dronepilot.json", "JSON configuration file (defaults are used when missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "DEBUG, INFO, WARNING, ERROR or CRITICAL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "text or json")
}
