package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailerport "github.com/hemoconecta/donor-portal-api/internal/ports/out/mailer"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSender_BuildsSimpleHTMLMessage(t *testing.T) {
	api := &fakeSES{}
	s := NewWithAPI(api, nil)

	err := s.Send(context.Background(), mailerport.Message{
		From:     "hemocentro@example.org",
		To:       "ana@example.com",
		Subject:  "Campanha O-",
		HTMLBody: "<p>Olá Ana</p>",
	})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "hemocentro@example.org", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"ana@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Campanha O-", aws.ToString(in.Content.Simple.Subject.Data))
	assert.Equal(t, "<p>Olá Ana</p>", aws.ToString(in.Content.Simple.Body.Html.Data))
	assert.Equal(t, "UTF-8", aws.ToString(in.Content.Simple.Body.Html.Charset))
}

func TestSender_WrapsAPIError(t *testing.T) {
	boom := errors.New("MessageRejected: Email address is not verified")
	s := NewWithAPI(&fakeSES{err: boom}, nil)

	err := s.Send(context.Background(), mailerport.Message{To: "x@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "x@example.com")
}

func TestNew_StaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{Region: "sa-east-1", AccessKeyID: "AKIA", SecretAccessKey: "secret"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, s.api)
}
