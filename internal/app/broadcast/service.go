package broadcast

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/app/segmentation"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/mailer"
)

// ChannelEmail is the only channel with a transport.
const ChannelEmail = "email"

type Request struct {
	Channel      string
	Sender       string // optional From address
	Subject      string // optional, falls back to the configured default
	BodyTemplate string
	Segmentation segmentation.Request
}

type EmailRequest struct {
	To      string
	Subject string
	Body    string
}

type Config struct {
	From           string
	DefaultSubject string
}

type Service struct {
	selector   *segmentation.Engine
	dispatcher *Dispatcher
	sender     mailer.Sender
	cfg        Config
}

func NewService(selector *segmentation.Engine, dispatcher *Dispatcher, sender mailer.Sender, cfg Config) *Service {
	return &Service{selector: selector, dispatcher: dispatcher, sender: sender, cfg: cfg}
}

// Preview returns the recipients a broadcast with seg would reach.
func (s *Service) Preview(ctx context.Context, seg segmentation.Request) ([]segmentation.Recipient, error) {
	c, err := segmentation.ParseCriteria(seg)
	if err != nil {
		return nil, err
	}
	return s.selector.Select(ctx, c)
}

// Broadcast selects recipients and sends to each. A summary is returned even when
// every send failed; zero recipients yields RecipientsCount 0.
func (s *Service) Broadcast(ctx context.Context, req Request) (Summary, error) {
	details := map[string]any{}
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel != ChannelEmail {
		details["channel"] = "only email is supported"
	}
	from, err := s.from(req.Sender)
	if err != nil {
		details["sender"] = err.Error()
	}
	if strings.TrimSpace(req.BodyTemplate) == "" {
		details["bodyTemplate"] = "must be non-empty"
	}
	if ve := apperr.Validation(details); ve != nil {
		return Summary{}, ve
	}
	if err := s.dispatcher.Validate(req.BodyTemplate); err != nil {
		return Summary{}, err
	}

	c, err := segmentation.ParseCriteria(req.Segmentation)
	if err != nil {
		return Summary{}, err
	}
	recipients, err := s.selector.Select(ctx, c)
	if err != nil {
		return Summary{}, err
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = s.cfg.DefaultSubject
	}
	return s.dispatcher.Send(ctx, from, recipients, subject, req.BodyTemplate)
}

// SendOne delivers a single message; a transport failure becomes a 502 TRANSPORT_FAILURE.
func (s *Service) SendOne(ctx context.Context, req EmailRequest) error {
	details := map[string]any{}
	to := strings.TrimSpace(req.To)
	if err := validateEmail(to); err != nil {
		details["to"] = err.Error()
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		details["subject"] = "must be non-empty"
	}
	if strings.TrimSpace(req.Body) == "" {
		details["body"] = "must be non-empty"
	}
	if ve := apperr.Validation(details); ve != nil {
		return ve
	}

	err := s.sender.Send(ctx, mailer.Message{From: s.cfg.From, To: to, Subject: subject, HTMLBody: req.Body})
	if err != nil {
		return apperr.TransportFailure(err.Error())
	}
	return nil
}

func (s *Service) from(sender string) (string, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return s.cfg.From, nil
	}
	if err := validateEmail(sender); err != nil {
		return "", err
	}
	return sender, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}
