package cmd

import (
	"Matcha/global/config"
	"Matcha/logger"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	rootCmd := &cobra.Command{
		Use:          "matcha",
		Short:        "Matcha realtime gateway: presence, chat and notifications over WebSocket",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./config.yaml)")

	load := func() (*config.AppConfig, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newTokenCmd(load),
		newNotifyCmd(load),
	)
	return rootCmd
}

type loader func() (*config.AppConfig, error)
