package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailout/internal/mailerr"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestStdout_Send(t *testing.T) {
	var buf bytes.Buffer
	p := testPayload(t)

	res, err := NewStdout(&buf).Send(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p.MessageID, res.ID)
	assert.Equal(t, "stdout", res.Transport)

	out := buf.String()
	assert.Contains(t, out, "Envelope-From: sender@example.com\n")
	assert.Contains(t, out, "Envelope-To: a@example.org, b@example.org\n")
	assert.Contains(t, out, string(p.Data))
}

func TestStdout_WriteError(t *testing.T) {
	_, err := NewStdout(failingWriter{}).Send(context.Background(), testPayload(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, mailerr.ErrTransport)
}
