package dkim

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	msgauthdkim "github.com/emersion/go-msgauth/dkim"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/logging"
	"github.com/teemow/mailout/internal/mailerr"
)

// signedHeaders are the header fields covered by the signature. Fields
// absent from a message are skipped by the signer.
var signedHeaders = []string{
	"from",
	"to",
	"subject",
	"date",
	"message-id",
	"mime-version",
	"content-type",
}

// Signer applies DKIM signatures to messages.
type Signer struct {
	domain     string
	selector   string
	key        crypto.Signer
	headerKeys []string
}

// New returns a Signer for cfg, or nil when DKIM is not configured.
func New(cfg config.DKIMConfig) (*Signer, error) {
	if cfg.Selector == "" && cfg.KeyPath == "" && cfg.PrivateKey == "" && cfg.Domain == "" {
		return nil, nil
	}
	if cfg.Selector == "" {
		return nil, mailerr.Configuration("dkim.new", "dkim selector is required when enabling DKIM (SMTP_DKIM_SELECTOR)")
	}

	var pemData []byte
	switch {
	case cfg.PrivateKey != "":
		pemData = []byte(cfg.PrivateKey)
	case cfg.KeyPath != "":
		data, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, mailerr.Configuration("dkim.new", "failed to read private key: %v", err)
		}
		pemData = data
	default:
		return nil, mailerr.Configuration("dkim.new", "provide SMTP_DKIM_KEY_PATH or SMTP_DKIM_PRIVATE_KEY")
	}

	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, mailerr.Configuration("dkim.new", "failed to parse private key: %v", err)
	}

	return &Signer{
		domain:     cfg.Domain,
		selector:   cfg.Selector,
		key:        key,
		headerKeys: signedHeaders,
	}, nil
}

// Selector returns the configured selector.
func (s *Signer) Selector() string {
	if s == nil {
		return ""
	}
	return s.selector
}

// Domain returns the configured signing domain, if any.
func (s *Signer) Domain() string {
	if s == nil {
		return ""
	}
	return s.domain
}

// Sign returns message with a DKIM-Signature header prepended. The signing
// domain is the configured one or the domain of from. A nil Signer and
// messages that already carry a signature are returned unchanged.
func (s *Signer) Sign(message []byte, from string) ([]byte, error) {
	if s == nil || s.key == nil {
		return message, nil
	}
	if hasSignature(message) {
		return message, nil
	}

	domain := s.domain
	if domain == "" {
		domain = logging.ExtractDomain(from)
	}
	if domain == "" {
		return nil, errors.New("dkim: unable to determine signing domain")
	}

	opts := &msgauthdkim.SignOptions{
		Domain:                 domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: msgauthdkim.CanonicalizationRelaxed,
		BodyCanonicalization:   msgauthdkim.CanonicalizationRelaxed,
		HeaderKeys:             s.headerKeys,
	}

	var signed bytes.Buffer
	if err := msgauthdkim.Sign(&signed, bytes.NewReader(normalizeLineEndings(message)), opts); err != nil {
		return nil, fmt.Errorf("dkim: signing failed: %w", err)
	}
	return signed.Bytes(), nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			return nil, errors.New("no private key found in PEM data")
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			if signer, ok := key.(crypto.Signer); ok {
				return signer, nil
			}
			return nil, errors.New("unsupported private key type in PKCS#8 container")
		}
		pemData = rest
	}
}

func hasSignature(message []byte) bool {
	upper := bytes.ToUpper(message)
	return bytes.HasPrefix(upper, []byte("DKIM-SIGNATURE:")) || bytes.Contains(upper, []byte("\nDKIM-SIGNATURE:"))
}

// normalizeLineEndings converts bare LF line endings to CRLF.
func normalizeLineEndings(data []byte) []byte {
	if bytes.Contains(data, []byte("\r\n")) || !bytes.Contains(data, []byte("\n")) {
		return data
	}
	return bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
}
