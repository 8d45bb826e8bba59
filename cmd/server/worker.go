package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/maintenance-auth/internal/config"
	"github.com/iliyamo/maintenance-auth/internal/mail"
	"github.com/iliyamo/maintenance-auth/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "mail-worker",
	Short: "Deliver queued mail through the mail API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := queue.NewConsumer(cfg.RabbitURL, cfg.MailQueue, deliveryMailer(cfg))
		log.Infof("mail-worker: consuming %s", c.Queue)
		if err := c.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// deliveryMailer is the transport the worker hands jobs to.  Without an API
// endpoint the jobs are logged.
func deliveryMailer(cfg config.Config) mail.Mailer {
	if cfg.MailAPIURL == "" {
		log.Warn("mail-worker: MAIL_API_URL not set, logging messages instead of sending")
		return mail.NewLogMailer()
	}
	return mail.NewHTTPMailer(cfg.MailAPIURL, cfg.MailAPIKey, sender(cfg), cfg.MailTimeout)
}
