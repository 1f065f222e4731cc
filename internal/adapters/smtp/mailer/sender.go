// Package mailer delivers outbound mail through an SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/hemoconecta/donor-portal-api/internal/ports/out/mailer"
)

// TLSMode selects how the connection to the relay is secured.
type TLSMode string

const (
	TLSNone     TLSMode = "none"
	TLSStartTLS TLSMode = "starttls"
	TLSImplicit TLSMode = "implicit"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      TLSMode

	// TLSConfig overrides the default client TLS settings (tests use it for self-signed relays).
	TLSConfig *tls.Config
}

// Sender is a mailer.Sender that opens one SMTP session per message.
type Sender struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewSender(cfg Config, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TLS == "" {
		cfg.TLS = TLSStartTLS
	}
	return &Sender{
		cfg:    cfg,
		logger: logger.With("component", "mail.smtp"),
		now:    time.Now,
	}
}

func (s *Sender) Send(ctx context.Context, msg mailer.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	c, err := s.dial(addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer c.Close()

	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	data := buildMessage(msg, s.now())
	if err := c.SendMail(msg.From, []string{msg.To}, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	if err := c.Quit(); err != nil {
		s.logger.Debug("smtp quit failed", "error", err)
	}

	s.logger.Debug("message relayed", "to", msg.To, "relay", addr, "size", len(data))
	return nil
}

func (s *Sender) dial(addr string) (*smtp.Client, error) {
	tlsCfg := s.cfg.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	}
	switch s.cfg.TLS {
	case TLSImplicit:
		return smtp.DialTLS(addr, tlsCfg)
	case TLSStartTLS:
		return smtp.DialStartTLS(addr, tlsCfg)
	case TLSNone:
		return smtp.Dial(addr)
	default:
		return nil, fmt.Errorf("unknown smtp tls mode %q", s.cfg.TLS)
	}
}

// buildMessage renders a single-part HTML message with quoted-printable body.
func buildMessage(msg mailer.Message, now time.Time) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", msg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/html; charset=UTF-8")
	header("Content-Transfer-Encoding", "quoted-printable")
	b.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&b)
	_, _ = qp.Write([]byte(strings.ReplaceAll(msg.HTMLBody, "\r\n", "\n")))
	_ = qp.Close()
	b.WriteString("\r\n")
	return b.Bytes()
}
