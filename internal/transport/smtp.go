package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/dkim"
	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
)

// DefaultSMTPTimeout bounds dialing and the whole SMTP conversation.
const DefaultSMTPTimeout = 30 * time.Second

// SMTP submits payloads to an authenticated relay.
//
// Security modes: SSL dials with implicit TLS, STARTTLS requires the upgrade
// and fails when the server does not offer it, and no mode upgrades only when
// the server offers STARTTLS.
type SMTP struct {
	cfg       config.SMTPConfig
	signer    *dkim.Signer
	timeout   time.Duration
	tlsConfig *tls.Config
	localName string
}

// SMTPOption configures an SMTP transport.
type SMTPOption func(*SMTP)

// WithDKIM signs each message with signer before submission.
func WithDKIM(signer *dkim.Signer) SMTPOption {
	return func(s *SMTP) { s.signer = signer }
}

// WithTLSConfig sets the TLS configuration used for SSL and STARTTLS.
func WithTLSConfig(cfg *tls.Config) SMTPOption {
	return func(s *SMTP) { s.tlsConfig = cfg }
}

// WithTimeout overrides DefaultSMTPTimeout.
func WithTimeout(d time.Duration) SMTPOption {
	return func(s *SMTP) { s.timeout = d }
}

// WithLocalName sets the EHLO name.
func WithLocalName(name string) SMTPOption {
	return func(s *SMTP) { s.localName = name }
}

// NewSMTP returns an SMTP transport for cfg.
func NewSMTP(cfg config.SMTPConfig, opts ...SMTPOption) *SMTP {
	s := &SMTP{cfg: cfg, timeout: DefaultSMTPTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns "smtp".
func (s *SMTP) Name() string { return config.TransportSMTP }

// Send submits p and returns its Message-ID as the id.
func (s *SMTP) Send(ctx context.Context, p *message.Payload) (Result, error) {
	if err := (&config.Config{SMTP: s.cfg}).ValidateSMTP(); err != nil {
		return Result{}, err
	}

	data, err := s.signer.Sign(p.Data, p.Sender)
	if err != nil {
		return Result{}, mailerr.Transport("transport.smtp", err)
	}

	if err := s.submit(ctx, p.Sender, p.Recipients, data); err != nil {
		return Result{}, mailerr.Transport("transport.smtp", err)
	}
	return Result{ID: p.MessageID, Transport: s.Name()}, nil
}

func (s *SMTP) submit(ctx context.Context, from string, to []string, data []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(int(s.cfg.Port)))

	conn, err := s.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("new client: %w", err)
	}
	defer client.Close()

	if s.localName != "" {
		if err := client.Hello(s.localName); err != nil {
			return fmt.Errorf("ehlo: %w", err)
		}
	}

	if s.cfg.Security != config.SecuritySSL {
		ok, _ := client.Extension("STARTTLS")
		switch {
		case ok:
			if err := client.StartTLS(s.clientTLSConfig()); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		case s.cfg.Security == config.SecuritySTARTTLS:
			return errors.New("server does not support STARTTLS")
		}
	}

	if s.cfg.User != "" && s.cfg.Password != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := client.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data start: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("data write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("quit: %w", err)
	}
	return nil
}

func (s *SMTP) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: s.timeout}
	if s.cfg.Security == config.SecuritySSL {
		td := &tls.Dialer{NetDialer: dialer, Config: s.clientTLSConfig()}
		return td.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func (s *SMTP) clientTLSConfig() *tls.Config {
	var cfg *tls.Config
	if s.tlsConfig != nil {
		cfg = s.tlsConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = s.cfg.Host
	}
	return cfg
}
