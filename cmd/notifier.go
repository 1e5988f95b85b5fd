/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leave-notifier/apiserver/config"
	"github.com/leave-notifier/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// notifierCmd represents the notifier command. It consumes leave
// events from the configured broker and logs them; real deployments
// hang mail or chat integrations off this loop.
var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Consume and log leave events from the broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		broker, err := notify.NewBroker(cmd.Context(), cfg.Notify)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("NOTIFY_BACKEND must be rabbitmq or pubsub")
		}
		defer broker.Close()

		logger := slog.Default()
		logger.Info("notifier listening", "backend", cfg.Notify.Backend, "channel", cfg.Notify.Channel)

		err = broker.Subscribe(cmd.Context(), func(ctx context.Context, event notify.Event) error {
			logger.Info("leave event",
				"kind", event.Kind,
				"leave_id", event.Leave.ID,
				"username", event.Leave.Username,
				"from", event.Leave.From,
				"to", event.Leave.To,
				"status", event.Leave.Status.String(),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(notifierCmd)
}
