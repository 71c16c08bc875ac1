package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"Matcha/global"
	"Matcha/logger"

	"github.com/spf13/cobra"
)

func newServeCmd(load loader) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if migrate {
				if err := global.Migrate(ctx, cfg); err != nil {
					return err
				}
			}
			app, err := global.Build(cfg)
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema before serving")
	return cmd
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the presence, notification and message tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := global.Migrate(context.Background(), cfg); err != nil {
				return err
			}
			logger.Info("[migrate] schema up to date")
			return nil
		},
	}
}
