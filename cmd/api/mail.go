package main

import (
	"context"
	"log/slog"

	memmailer "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/mailer"
	sesmailer "github.com/hemoconecta/donor-portal-api/internal/adapters/ses/mailer"
	smtpmailer "github.com/hemoconecta/donor-portal-api/internal/adapters/smtp/mailer"
	"github.com/hemoconecta/donor-portal-api/internal/platform/config"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/mailer"
)

func newMailSender(ctx context.Context, cfg config.MailConfig, logger *slog.Logger) (mailer.Sender, error) {
	switch cfg.Backend {
	case "smtp":
		return smtpmailer.NewSender(smtpmailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			TLS:      smtpmailer.TLSMode(cfg.SMTP.TLS),
		}, logger), nil
	case "ses":
		return sesmailer.New(ctx, sesmailer.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		}, logger)
	default:
		// Local development: messages are logged and kept in memory.
		return memmailer.NewOutbox(logger), nil
	}
}
