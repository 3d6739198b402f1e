package notifxses_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/notifx"
	"github.com/Abraxas-365/flashmoji/pkg/notifx/notifxses"
)

type fakeSES struct {
	in  *ses.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestProvider_SendEmail(t *testing.T) {
	api := &fakeSES{}
	p := notifxses.NewProvider(api, "bot@flashmoji.dev")

	err := p.SendEmail(context.Background(), notifx.EmailMessage{
		To:       []string{"ops@flashmoji.dev"},
		ReplyTo:  "support@flashmoji.dev",
		Subject:  "failed",
		HTMLBody: "<p>x</p>",
	}, notifx.WithConfigID("alerts"), notifx.WithTags(map[string]string{"kind": "job_failed", "env": "dev"}))
	require.NoError(t, err)

	in := api.in
	require.NotNil(t, in)
	assert.Equal(t, "bot@flashmoji.dev", aws.ToString(in.Source))
	assert.Equal(t, []string{"ops@flashmoji.dev"}, in.Destination.ToAddresses)
	assert.Equal(t, []string{"support@flashmoji.dev"}, in.ReplyToAddresses)
	assert.Equal(t, "failed", aws.ToString(in.Message.Subject.Data))
	assert.Equal(t, "<p>x</p>", aws.ToString(in.Message.Body.Html.Data))
	assert.Nil(t, in.Message.Body.Text)
	assert.Equal(t, "alerts", aws.ToString(in.ConfigurationSetName))
	require.Len(t, in.Tags, 2)
	assert.Equal(t, "env", aws.ToString(in.Tags[0].Name))
	assert.Equal(t, "kind", aws.ToString(in.Tags[1].Name))
}

func TestProvider_SendEmailError(t *testing.T) {
	p := notifxses.NewProvider(&fakeSES{err: errors.New("throttled")}, "bot@flashmoji.dev")

	err := p.SendEmail(context.Background(), notifx.EmailMessage{
		From: "other@flashmoji.dev", To: []string{"ops@flashmoji.dev"}, Subject: "s", TextBody: "b",
	})
	assert.True(t, errx.IsCode(err, notifxses.ErrSendFailed))
}
