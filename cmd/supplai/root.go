package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Capeo/SupplAI/internal/config"
	"github.com/Capeo/SupplAI/internal/utils"
)

const app = "supplai"

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "supplai checks tender responses against the tender's qualification requirements",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is supplai.yaml in current directory)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*utils.Logger, error) {
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	return logger, nil
}
