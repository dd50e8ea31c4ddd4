package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailout/internal/mailerr"
)

type mockSES struct {
	input *sesv2.SendEmailInput
	out   *sesv2.SendEmailOutput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.input = in
	return m.out, m.err
}

func TestSES_Send(t *testing.T) {
	mock := &mockSES{out: &sesv2.SendEmailOutput{MessageId: aws.String("0100018c-ses-id")}}
	p := testPayload(t)

	res, err := NewSESWithClient(mock, "").Send(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "0100018c-ses-id", res.ID)
	assert.Equal(t, "ses", res.Transport)

	require.NotNil(t, mock.input)
	assert.Equal(t, "sender@example.com", aws.ToString(mock.input.FromEmailAddress))
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, mock.input.Destination.ToAddresses)
	assert.Equal(t, p.Data, mock.input.Content.Raw.Data)
}

func TestSES_SenderOverride(t *testing.T) {
	mock := &mockSES{out: &sesv2.SendEmailOutput{MessageId: aws.String("id")}}

	_, err := NewSESWithClient(mock, "verified@example.net").Send(context.Background(), testPayload(t))
	require.NoError(t, err)
	assert.Equal(t, "verified@example.net", aws.ToString(mock.input.FromEmailAddress))
}

func TestSES_Errors(t *testing.T) {
	tests := []struct {
		name string
		mock *mockSES
		want string
	}{
		{"api error", &mockSES{err: errors.New("MessageRejected: Email address is not verified")}, "not verified"},
		{"missing id", &mockSES{out: &sesv2.SendEmailOutput{}}, "no message id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSESWithClient(tt.mock, "").Send(context.Background(), testPayload(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, mailerr.ErrTransport)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
