package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/mailout/internal/mailerr"
)

// lineLength is the maximum length of a base64 line in an attachment body.
const lineLength = 76

// Builder turns OutgoingMessages into Payloads.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// NewBuilder returns a Builder using the wall clock and random message ids.
func NewBuilder() *Builder {
	return &Builder{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

var defaultBuilder = NewBuilder()

// Build composes msg with the default Builder.
func Build(msg *OutgoingMessage) (*Payload, error) {
	return defaultBuilder.Build(msg)
}

// Build composes msg into a MIME payload. The sender and recipient must be
// present and on one line; their syntax is not checked.
func (b *Builder) Build(msg *OutgoingMessage) (*Payload, error) {
	if msg == nil {
		return nil, mailerr.Validation("message.build", "message is required")
	}
	if trimmed(msg.From) == "" {
		return nil, mailerr.Validation("message.build", "sender is required")
	}
	if trimmed(msg.To) == "" {
		return nil, mailerr.Validation("message.build", "recipient is required")
	}
	if strings.ContainsAny(trimmed(msg.From), "\r\n") {
		return nil, mailerr.Validation("message.build", "sender must not contain line breaks")
	}
	if strings.ContainsAny(trimmed(msg.To), "\r\n") {
		return nil, mailerr.Validation("message.build", "recipient must not contain line breaks")
	}

	attachments := make([]Attachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		resolved, err := att.resolve()
		if err != nil {
			return nil, mailerr.Validation("message.build", "%v", err)
		}
		attachments = append(attachments, resolved)
	}

	sender := envelopeAddress(msg.From)
	messageID := fmt.Sprintf("<%s@%s>", b.newID(), domainOf(sender))

	var buf bytes.Buffer
	writeHeader(&buf, "From", trimmed(msg.From))
	writeHeader(&buf, "To", trimmed(msg.To))
	writeHeader(&buf, "Subject", EncodeSubject(msg.Subject))
	writeHeader(&buf, "Date", b.now().Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID)
	writeHeader(&buf, "MIME-Version", "1.0")

	var err error
	if len(attachments) == 0 {
		err = writeAlternative(&buf, msg.Text, msg.HTML)
	} else {
		err = writeMixed(&buf, msg.Text, msg.HTML, attachments)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build MIME body: %w", err)
	}

	return &Payload{
		Sender:     sender,
		Recipients: envelopeRecipients(msg.To),
		MessageID:  messageID,
		Data:       buf.Bytes(),
	}, nil
}

// EncodeSubject encodes s as RFC 2047 encoded words (UTF-8, base64) when it
// contains characters that may not appear in a header as is.
func EncodeSubject(s string) string {
	return mime.BEncoding.Encode("UTF-8", s)
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// writeAlternative writes the Content-Type header and a multipart/alternative
// body directly after the headers already in buf.
func writeAlternative(buf *bytes.Buffer, text, html string) error {
	alt := multipart.NewWriter(buf)
	fmt.Fprintf(buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", alt.Boundary())
	if err := writeBodies(alt, text, html); err != nil {
		return err
	}
	return alt.Close()
}

func writeMixed(buf *bytes.Buffer, text, html string, attachments []Attachment) error {
	mixed := multipart.NewWriter(buf)
	fmt.Fprintf(buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	var altBody bytes.Buffer
	alt := multipart.NewWriter(&altBody)
	if err := writeBodies(alt, text, html); err != nil {
		return err
	}
	if err := alt.Close(); err != nil {
		return err
	}

	altHeader := make(textproto.MIMEHeader)
	altHeader.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary()))
	part, err := mixed.CreatePart(altHeader)
	if err != nil {
		return fmt.Errorf("failed to create alternative part: %w", err)
	}
	if _, err := part.Write(altBody.Bytes()); err != nil {
		return err
	}

	for _, att := range attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", attachmentContentType(att))
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))

		part, err := mixed.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := part.Write([]byte(wrapBase64(att.Content))); err != nil {
			return err
		}
	}
	return mixed.Close()
}

// attachmentContentType keeps any parameters of the declared type and adds
// the file name.
func attachmentContentType(att Attachment) string {
	mediaType, params, err := mime.ParseMediaType(att.ContentType)
	if err != nil {
		mediaType, params = defaultContentType, map[string]string{}
	}
	params["name"] = att.Filename
	if ct := mime.FormatMediaType(mediaType, params); ct != "" {
		return ct
	}
	return defaultContentType
}

// writeBodies always writes both the text and the HTML part, even when one
// of them is empty, so the client can pick a rendering.
func writeBodies(w *multipart.Writer, text, html string) error {
	for _, body := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=\"UTF-8\"", text},
		{"text/html; charset=\"UTF-8\"", html},
	} {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", body.contentType)
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		part, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create body part: %w", err)
		}
		qp := quotedprintable.NewWriter(part)
		if _, err := qp.Write([]byte(body.content)); err != nil {
			return err
		}
		if err := qp.Close(); err != nil {
			return err
		}
	}
	return nil
}

// wrapBase64 encodes data as base64 broken into CRLF separated lines of at
// most 76 characters.
func wrapBase64(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for i := 0; i < len(encoded); i += lineLength {
		end := i + lineLength
		if end > len(encoded) {
			end = len(encoded)
		}
		b.WriteString(encoded[i:end])
		b.WriteString("\r\n")
	}
	return b.String()
}

func encodeRaw(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// envelopeAddress returns the bare address of s, or s itself when it does
// not parse.
func envelopeAddress(s string) string {
	s = trimmed(s)
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.Address
	}
	return s
}

func envelopeRecipients(s string) []string {
	s = trimmed(s)
	list, err := mail.ParseAddressList(s)
	if err != nil {
		return []string{s}
	}
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, addr.Address)
	}
	return out
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i+1 < len(address) {
		return strings.ToLower(address[i+1:])
	}
	return "localhost"
}
