package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"Matcha/logger"
	"Matcha/service/natsx"
	"Matcha/service/notify"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// notify 子命令：向通知主题投递一条事件，联调 NATS 入口用
func newNotifyCmd(load loader) *cobra.Command {
	var ev notify.Event
	var msgID string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Publish a notification event to the NATS subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			nc := cfg.Notify.NATS
			if len(nc.Servers) == 0 || nc.Subject == "" {
				return errors.New("notify.nats servers/subject not configured")
			}
			client, err := natsx.NewClient(natsx.Config{
				Servers:       nc.Servers,
				Name:          nc.Name + "-cli",
				User:          nc.User,
				Password:      nc.Password,
				ReconnectWait: nc.ReconnectWait,
				Timeout:       nc.Timeout,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.PublishOnce(ctx, nc.Subject, data, nil, msgID); err != nil {
				return err
			}
			logger.Info("[notify] published", zap.String("subject", nc.Subject), zap.Int64("userId", ev.UserID))
			return nil
		},
	}
	cmd.Flags().Int64Var(&ev.UserID, "user", 0, "recipient user id")
	cmd.Flags().StringVar(&ev.Type, "type", "", "notification type (like, match, visit...)")
	cmd.Flags().StringVar(&ev.Message, "message", "", "notification text")
	cmd.Flags().StringVar(&msgID, "msg-id", "", "dedupe id (random when empty)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
