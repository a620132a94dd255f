/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/apnisec/apiserver/config"
	"github.com/apnisec/apiserver/internal/mq"
	"github.com/apnisec/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// mailerCmd represents the mailer command.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Runs the notification mailer worker",
	Long: `Runs the worker that consumes notification events from the
message broker and delivers them over SMTP. Usage:

	apiserver mailer
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		backend, err := mq.NewBackend(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect broker failed: %w", err)
		}
		defer func() {
			_ = backend.Close()
		}()

		sender := notify.NewSMTPBackend(cfg.SMTP, cfg.Notify.From, cfg.FrontendURL)

		log.Printf("mailer: consuming %s", notify.Channel)
		err = backend.Subscribe(ctx, notify.Channel, func(ctx context.Context, msg mq.Message) error {
			var ev notify.Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				log.Printf("mailer: dropping malformed event %s: %v", msg.ID, err)
				return nil
			}
			if err := sender.Send(ctx, ev); err != nil {
				log.Printf("mailer: delivery of %s to %s failed: %v", ev.Kind, ev.To, err)
				return err
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
