// Package mailer delivers outbound mail through Amazon SES (API v2).
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/hemoconecta/donor-portal-api/internal/ports/out/mailer"
)

// API is the subset of *sesv2.Client used by Sender.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Config struct {
	Region string
	// Static credentials; when empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// Sender is a mailer.Sender backed by SES SendEmail.
type Sender struct {
	api    API
	logger *slog.Logger
}

// New builds an SES client from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Sender, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(sesv2.NewFromConfig(awsCfg), logger), nil
}

func NewWithAPI(api API, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{api: api, logger: logger.With("component", "mail.ses")}
}

func (s *Sender) Send(ctx context.Context, msg mailer.Message) error {
	if s.api == nil {
		return errors.New("ses client not initialized")
	}
	out, err := s.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", msg.To, err)
	}
	s.logger.Debug("message accepted by ses", "to", msg.To, "message_id", aws.ToString(out.MessageId))
	return nil
}
