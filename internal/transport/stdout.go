package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
)

// Stdout writes the MIME document instead of sending it.
type Stdout struct {
	w io.Writer
}

// NewStdout returns a Stdout transport writing to w, or os.Stdout when w is nil.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

// Name returns "stdout".
func (s *Stdout) Name() string { return config.TransportStdout }

// Send writes the envelope and the document. The id is the Message-ID.
func (s *Stdout) Send(_ context.Context, p *message.Payload) (Result, error) {
	var b strings.Builder
	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "Envelope-From: %s\n", p.Sender)
	fmt.Fprintf(&b, "Envelope-To: %s\n", strings.Join(p.Recipients, ", "))
	b.WriteString("----------------------------------------\n")
	b.Write(p.Data)
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	b.WriteString("========================================\n")

	if _, err := io.WriteString(s.w, b.String()); err != nil {
		return Result{}, mailerr.Transport("transport.stdout", err)
	}
	return Result{ID: p.MessageID, Transport: s.Name()}, nil
}
