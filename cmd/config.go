package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the effective configuration to the --config file",
	Long: `Write the effective configuration to the --config file.

Values already in the file are kept, missing ones are filled with defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if _, err := os.Stat(configPath); err == nil && !configForce {
			return fmt.Errorf("%s exists, use --force to rewrite it", configPath)
		}
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		logger.Info("configuration written", "path", configPath)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configForce, "force", false, "Rewrite an existing file")
	rootCmd.AddCommand(configCmd)
}
