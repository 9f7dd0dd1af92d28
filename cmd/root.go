package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agrisense/maizeguard/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "maizeguard",
	Short: "Maize disease scan service",
	Long:  "Classifies maize leaf images via Azure Custom Vision, derives disease risk from Open-Meteo weather, and keeps scan history and farm boundaries per grower.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
