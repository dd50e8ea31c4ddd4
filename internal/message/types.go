package message

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

const defaultContentType = "application/octet-stream"

// OutgoingMessage is the rendered content of a single send call.
type OutgoingMessage struct {
	From        string
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Attachment is a file carried in a multipart/mixed message.
// When Content is nil the file at Path is read at build time.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
	Path        string
}

// AttachmentFromFile returns an attachment that is read from path when the
// message is built. Filename and content type are derived from the path.
func AttachmentFromFile(path string) Attachment {
	return Attachment{
		Filename: filepath.Base(path),
		Path:     path,
	}
}

// resolve returns the attachment with content loaded and defaults applied.
func (a Attachment) resolve() (Attachment, error) {
	if a.Content == nil {
		if a.Path == "" {
			return a, fmt.Errorf("attachment %q has neither content nor path", a.Filename)
		}
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return a, fmt.Errorf("failed to read attachment: %w", err)
		}
		a.Content = data
	}

	if a.Filename == "" {
		if a.Path != "" {
			a.Filename = filepath.Base(a.Path)
		} else {
			a.Filename = "attachment"
		}
	}

	if a.ContentType == "" {
		a.ContentType = defaultContentType
		if ext := filepath.Ext(a.Filename); ext != "" {
			if ct := mime.TypeByExtension(ext); ct != "" {
				a.ContentType = ct
			}
		}
	}
	return a, nil
}

// Payload is a fully composed message ready for a transport.
type Payload struct {
	// Sender is the bare envelope sender address.
	Sender string
	// Recipients are the bare envelope recipient addresses.
	Recipients []string
	// MessageID is the value of the Message-ID header, angle brackets included.
	MessageID string
	// Data is the complete MIME document, headers and body.
	Data []byte
}

// Raw returns Data encoded as unpadded base64url, the form the Gmail API
// expects in Message.Raw.
func (p *Payload) Raw() string {
	return encodeRaw(p.Data)
}

// String returns the MIME document.
func (p *Payload) String() string {
	return string(p.Data)
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
