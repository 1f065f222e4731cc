package broadcast

import (
	"context"
	"errors"
	"testing"

	memmailer "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/mailer"
	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/app/segmentation"
	"github.com/hemoconecta/donor-portal-api/internal/platform/metrics"
)

func recipients() []segmentation.Recipient {
	return []segmentation.Recipient{
		{DonorID: "d1", Name: "Ana", Email: "r1@example.com"},
		{DonorID: "d2", Name: "Bruno", Email: "r2@example.com"},
		{DonorID: "d3", Name: "", Email: "r3@example.com"},
	}
}

func TestDispatcher_PartialFailureDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	outbox := memmailer.NewOutbox(nil)
	outbox.FailFor("r2@example.com", "mailbox unavailable")
	d := NewDispatcher(outbox, WithMetrics(metrics.New()))

	sum, err := d.Send(context.Background(), "no-reply@hemo.test", recipients(), "Doe sangue", "Olá {{nome}}!")
	if err != nil {
		t.Fatalf("Send err=%v", err)
	}
	if sum.Sent != 2 || sum.RecipientsCount != 3 || len(sum.Failed) != 1 {
		t.Fatalf("summary=%+v, want sent=2 failed=1 count=3", sum)
	}
	if sum.Failed[0].Email != "r2@example.com" || sum.Failed[0].Error != "mailbox unavailable" {
		t.Fatalf("failed=%+v", sum.Failed)
	}

	sent := outbox.Sent()
	if len(sent) != 2 || sent[0].To != "r1@example.com" || sent[1].To != "r3@example.com" {
		t.Fatalf("sent=%+v", sent)
	}
	if sent[0].HTMLBody != "Olá Ana!" || sent[1].HTMLBody != "Olá !" {
		t.Fatalf("bodies=%q, %q", sent[0].HTMLBody, sent[1].HTMLBody)
	}
	if sent[0].From != "no-reply@hemo.test" || sent[0].Subject != "Doe sangue" {
		t.Fatalf("message=%+v", sent[0])
	}
}

func TestDispatcher_DefaultFilter(t *testing.T) {
	t.Parallel()

	outbox := memmailer.NewOutbox(nil)
	d := NewDispatcher(outbox)

	_, err := d.Send(context.Background(), "a@b.test", recipients()[2:], "s", `Olá {{ nome | default: "doador" }}`)
	if err != nil {
		t.Fatalf("Send err=%v", err)
	}
	if got := outbox.Sent()[0].HTMLBody; got != "Olá doador" {
		t.Fatalf("body=%q", got)
	}
}

func TestDispatcher_MalformedTemplateSendsNothing(t *testing.T) {
	t.Parallel()

	outbox := memmailer.NewOutbox(nil)
	d := NewDispatcher(outbox)

	_, err := d.Send(context.Background(), "a@b.test", recipients(), "s", "{% if nome %}Olá")
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 422 {
		t.Fatalf("err=%v, want 422", err)
	}
	if n := len(outbox.Sent()); n != 0 {
		t.Fatalf("sent=%d, want 0", n)
	}
}

func TestDispatcher_IgnoresCancellation(t *testing.T) {
	t.Parallel()

	outbox := memmailer.NewOutbox(nil)
	d := NewDispatcher(outbox, WithRate(1000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := d.Send(ctx, "a@b.test", recipients(), "s", "oi")
	if err != nil {
		t.Fatalf("Send err=%v", err)
	}
	if sum.Sent != 3 {
		t.Fatalf("summary=%+v, want all sent", sum)
	}
}

func TestDispatcher_NoRecipients(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(memmailer.NewOutbox(nil))
	sum, err := d.Send(context.Background(), "a@b.test", nil, "s", "oi")
	if err != nil {
		t.Fatalf("Send err=%v", err)
	}
	if sum.RecipientsCount != 0 || sum.Sent != 0 || sum.Failed == nil || len(sum.Failed) != 0 {
		t.Fatalf("summary=%+v", sum)
	}
}
