// Command mailworker drains the outgoing mail queue and delivers each
// message over SMTP. Run it alongside servers configured with
// MAIL_TRANSPORT=amqp.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/msomdec/quill/internal/config"
	"github.com/msomdec/quill/internal/logger"
	"github.com/msomdec/quill/internal/mail"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue, err := mail.DialQueue(cfg.Mail.AMQPURL, cfg.Mail.AMQPQueue)
	if err != nil {
		slog.Error("failed to connect to mail queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	smtpMailer := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.SMTPUsername,
		Password: cfg.Mail.SMTPPassword,
		From:     cfg.Mail.From,
		StartTLS: cfg.Mail.SMTPStartTLS,
	}, nil)

	slog.Info("mail worker starting", "queue", cfg.Mail.AMQPQueue, "smtp_host", cfg.Mail.SMTPHost)
	if err := queue.Consume(ctx, smtpMailer); err != nil {
		slog.Error("mail worker stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("mail worker stopped")
}
