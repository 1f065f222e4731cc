package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	memclock "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/clock"
	memdonorrepo "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/donorrepo"
	memmailer "github.com/hemoconecta/donor-portal-api/internal/adapters/memory/mailer"
	"github.com/hemoconecta/donor-portal-api/internal/app/apperr"
	"github.com/hemoconecta/donor-portal-api/internal/app/segmentation"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/donorrepo"
)

func newService(t *testing.T) (*Service, *memmailer.Outbox) {
	t.Helper()
	repo := memdonorrepo.NewRepo()
	for _, d := range []donorrepo.Donor{
		{ID: "d1", Name: "Ana", Email: "ana@example.com", BloodType: domain.BloodTypeONeg, DateOfBirth: "1984-01-01"},
		{ID: "d2", Name: "Bia", Email: "bia@example.com", BloodType: domain.BloodTypeONeg, DateOfBirth: "2010-01-01"},
		{ID: "d3", Name: "Caio", Email: "caio@example.com", BloodType: domain.BloodTypeAPos, DateOfBirth: "1984-01-01"},
	} {
		if err := repo.Create(context.Background(), d); err != nil {
			t.Fatalf("Create err=%v", err)
		}
	}
	clk := memclock.NewManualClock(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))
	outbox := memmailer.NewOutbox(nil)
	svc := NewService(
		segmentation.NewEngine(repo, clk),
		NewDispatcher(outbox),
		outbox,
		Config{From: "no-reply@hemo.test", DefaultSubject: "Mensagem do hemocentro"},
	)
	return svc, outbox
}

func TestService_Broadcast(t *testing.T) {
	t.Parallel()
	svc, outbox := newService(t)

	sum, err := svc.Broadcast(context.Background(), Request{
		Channel:      "email",
		BodyTemplate: "Olá {{nome}}",
		Segmentation: segmentation.Request{BloodTypes: []string{"O-"}, MinAge: json.RawMessage(`18`)},
	})
	if err != nil {
		t.Fatalf("Broadcast err=%v", err)
	}
	if sum.Sent != 1 || sum.RecipientsCount != 1 {
		t.Fatalf("summary=%+v", sum)
	}
	msg := outbox.Sent()[0]
	if msg.To != "ana@example.com" || msg.Subject != "Mensagem do hemocentro" || msg.From != "no-reply@hemo.test" {
		t.Fatalf("message=%+v", msg)
	}
}

func TestService_Broadcast_AllFailedVersusNoneMatched(t *testing.T) {
	t.Parallel()
	svc, outbox := newService(t)
	outbox.FailFor("caio@example.com", "550 rejected")

	sum, err := svc.Broadcast(context.Background(), Request{
		Channel:      "email",
		BodyTemplate: "oi",
		Segmentation: segmentation.Request{BloodTypes: []string{"A+"}},
	})
	if err != nil {
		t.Fatalf("Broadcast err=%v", err)
	}
	if sum.RecipientsCount != 1 || len(sum.Failed) != 1 || sum.Sent != 0 {
		t.Fatalf("summary=%+v, want everything failed", sum)
	}

	sum, err = svc.Broadcast(context.Background(), Request{
		Channel:      "email",
		BodyTemplate: "oi",
		Segmentation: segmentation.Request{BloodTypes: []string{"B+"}},
	})
	if err != nil {
		t.Fatalf("Broadcast err=%v", err)
	}
	if sum.RecipientsCount != 0 || len(sum.Failed) != 0 {
		t.Fatalf("summary=%+v, want none matched", sum)
	}
}

func TestService_Broadcast_Validation(t *testing.T) {
	t.Parallel()
	svc, outbox := newService(t)

	cases := map[string]Request{
		"whatsapp":     {Channel: "whatsapp", BodyTemplate: "oi"},
		"bad sender":   {Channel: "email", Sender: "Hemo <x@y.z>", BodyTemplate: "oi"},
		"empty body":   {Channel: "email"},
		"bad template": {Channel: "email", BodyTemplate: "{% if nome %}oi"},
		"bad age":      {Channel: "email", BodyTemplate: "oi", Segmentation: segmentation.Request{MinAge: json.RawMessage(`"x"`)}},
	}
	for name, req := range cases {
		_, err := svc.Broadcast(context.Background(), req)
		ae := (*apperr.Error)(nil)
		if !errors.As(err, &ae) || ae.Status != 422 {
			t.Fatalf("%s: err=%v, want 422", name, err)
		}
	}
	if n := len(outbox.Sent()); n != 0 {
		t.Fatalf("sent=%d, want 0", n)
	}
}

func TestService_Preview(t *testing.T) {
	t.Parallel()
	svc, outbox := newService(t)

	rs, err := svc.Preview(context.Background(), segmentation.Request{BloodTypes: []string{"O-"}})
	if err != nil {
		t.Fatalf("Preview err=%v", err)
	}
	if len(rs) != 2 || rs[0].DonorID != "d1" || rs[1].DonorID != "d2" {
		t.Fatalf("recipients=%+v", rs)
	}
	if len(outbox.Sent()) != 0 {
		t.Fatalf("preview must not send")
	}
}

func TestService_SendOne(t *testing.T) {
	t.Parallel()
	svc, outbox := newService(t)
	outbox.FailFor("down@example.com", "connection refused")

	if err := svc.SendOne(context.Background(), EmailRequest{To: "ana@example.com", Subject: "Oi", Body: "<p>oi</p>"}); err != nil {
		t.Fatalf("SendOne err=%v", err)
	}

	err := svc.SendOne(context.Background(), EmailRequest{To: "down@example.com", Subject: "Oi", Body: "oi"})
	ae := (*apperr.Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 502 || ae.Code != "TRANSPORT_FAILURE" || ae.Message != "connection refused" {
		t.Fatalf("err=%v, want 502 TRANSPORT_FAILURE", err)
	}

	err = svc.SendOne(context.Background(), EmailRequest{To: "nope", Subject: "", Body: ""})
	if !errors.As(err, &ae) || ae.Status != 422 || len(ae.Details) != 3 {
		t.Fatalf("err=%v, want 422 with 3 details", err)
	}
}
