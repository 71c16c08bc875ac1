package cmd

import (
	"errors"
	"fmt"
	"time"

	"Matcha/global"
	"Matcha/tools/security"

	"github.com/spf13/cobra"
)

func newTokenCmd(load loader) *cobra.Command {
	var (
		service string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for POST /internal/notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Notify.ServiceSecret == "" {
				return errors.New("notify.service_secret is not configured")
			}
			opts := security.DefaultOptions([]byte(cfg.Notify.ServiceSecret))
			opts.TTL = ttl
			token, exp, err := security.Generate(opts, service, scopes)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires %s\n", token, exp.Format(time.RFC3339))
			return err
		},
	}
	cmd.Flags().StringVar(&service, "service", "likes", "calling service name (sub)")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{global.ScopeNotificationsWrite}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
