package main

import (
	"fmt"
	"os"

	"github.com/foodgram/api/internal/config"
	"github.com/foodgram/api/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "foodgram",
	Short: "Food delivery API server",
	Long:  `foodgram serves the ordering, delivery and notification API of a single-restaurant delivery service.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.Initialize(cfg.LogLevel); err != nil {
			return err
		}
		loaded = cfg
		return nil
	},
	SilenceUsage: true,
}

// loaded is filled in by the root command before any subcommand runs.
var loaded *config.Config

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = zap.L().Sync()
}
