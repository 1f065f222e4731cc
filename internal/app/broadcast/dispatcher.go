package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/osteele/liquid"
	"golang.org/x/time/rate"

	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/app/segmentation"
	"github.com/hemoconecta/donor-portal-api/internal/platform/metrics"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/mailer"
)

// NamePlaceholder is the template variable bound to the recipient's name.
const NamePlaceholder = "nome"

// Failure is one recipient the transport did not accept.
type Failure struct {
	Email string
	Error string
}

// Summary aggregates one broadcast. RecipientsCount == Sent + len(Failed).
type Summary struct {
	Sent            int
	Failed          []Failure
	RecipientsCount int
}

// Dispatcher sends one personalised message per recipient.
type Dispatcher struct {
	sender  mailer.Sender
	engine  *liquid.Engine
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Dispatcher)

// WithRate paces sends to perSecond messages per second. Zero or less disables pacing.
func WithRate(perSecond float64) Option {
	return func(d *Dispatcher) {
		if perSecond > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDispatcher(sender mailer.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		engine: newEngine(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "broadcast")
	return d
}

func newEngine() *liquid.Engine {
	e := liquid.NewEngine()
	// {{ nome | default: "doador" }}
	e.RegisterFilter("default", func(value any, fallback string) any {
		if value == nil {
			return fallback
		}
		if s, ok := value.(string); ok && s == "" {
			return fallback
		}
		return value
	})
	return e
}

// Validate reports whether bodyTemplate parses.
func (d *Dispatcher) Validate(bodyTemplate string) error {
	if _, err := d.engine.ParseString(bodyTemplate); err != nil {
		return apperr.Invalid("bodyTemplate", err.Error())
	}
	return nil
}

// Send delivers to every recipient in order and never stops on a transport failure.
// Cancellation of ctx does not cut the batch short; the context's values still reach the transport.
// The only error is a malformed template, returned before anything is sent.
func (d *Dispatcher) Send(ctx context.Context, from string, recipients []segmentation.Recipient, subject, bodyTemplate string) (Summary, error) {
	tpl, err := d.engine.ParseString(bodyTemplate)
	if err != nil {
		return Summary{}, apperr.Invalid("bodyTemplate", err.Error())
	}

	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	sum := Summary{Failed: []Failure{}, RecipientsCount: len(recipients)}

	for _, r := range recipients {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				sum.Failed = append(sum.Failed, Failure{Email: r.Email, Error: err.Error()})
				continue
			}
		}

		body, err := tpl.RenderString(liquid.Bindings{NamePlaceholder: r.Name})
		if err != nil {
			sum.Failed = append(sum.Failed, Failure{Email: r.Email, Error: fmt.Sprintf("render: %v", err)})
			continue
		}

		if sendErr := d.sender.Send(ctx, mailer.Message{From: from, To: r.Email, Subject: subject, HTMLBody: body}); sendErr != nil {
			d.logger.WarnContext(ctx, "broadcast send failed", "to", r.Email, "err", sendErr)
			sum.Failed = append(sum.Failed, Failure{Email: r.Email, Error: sendErr.Error()})
			continue
		}
		sum.Sent++
	}

	d.metrics.ObserveBroadcast(sum.RecipientsCount, sum.Sent, len(sum.Failed))
	d.logger.InfoContext(ctx, "broadcast finished",
		"recipients", sum.RecipientsCount,
		"sent", sum.Sent,
		"failed", len(sum.Failed),
		"duration", time.Since(started),
	)
	return sum, nil
}
