package mailer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/hemoconecta/donor-portal-api/internal/ports/out/mailer"
)

// Outbox is an in-memory mailer.Sender that records every accepted message.
// With a logger it doubles as the local development transport.
// It is safe for concurrent use.
type Outbox struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]string

	logger *slog.Logger
}

func NewOutbox(logger *slog.Logger) *Outbox {
	if logger != nil {
		logger = logger.With("component", "mail.outbox")
	}
	return &Outbox{failTo: make(map[string]string), logger: logger}
}

// FailFor makes every send to addr fail with reason.
func (o *Outbox) FailFor(addr string, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failTo[strings.ToLower(addr)] = reason
}

func (o *Outbox) Send(ctx context.Context, msg mailer.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if reason, ok := o.failTo[strings.ToLower(msg.To)]; ok {
		return errors.New(reason)
	}
	o.sent = append(o.sent, msg)
	if o.logger != nil {
		o.logger.Info("mail accepted", "to", msg.To, "from", msg.From, "subject", msg.Subject, "bytes", len(msg.HTMLBody))
	}
	return nil
}

// Sent returns a copy of the accepted messages in send order.
func (o *Outbox) Sent() []mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]mailer.Message, len(o.sent))
	copy(out, o.sent)
	return out
}
