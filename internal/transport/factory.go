package transport

import (
	"context"
	"io"
	"log/slog"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/dkim"
	"github.com/teemow/mailout/internal/logging"
	"github.com/teemow/mailout/internal/mailerr"
)

// Deps are the collaborators a transport may need.
type Deps struct {
	// Auth authorizes Gmail requests. It is only called when a Gmail
	// transport sends.
	Auth ClientProvider
	// Stdout receives the output of the stdout transport.
	Stdout io.Writer
	// SES replaces the AWS client, mostly for tests.
	SES SendEmailAPI
	// Logger receives setup messages. Defaults to slog.Default().
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// New returns the transport called name, configured from cfg.
func New(ctx context.Context, name string, cfg *config.Config, deps Deps) (Transport, error) {
	switch name {
	case config.TransportGmail:
		if deps.Auth == nil {
			return nil, mailerr.Configuration("transport.new", "gmail transport requires an authorizer")
		}
		return NewGmail(deps.Auth), nil

	case config.TransportSMTP:
		if err := cfg.ValidateSMTP(); err != nil {
			return nil, err
		}
		signer, err := dkim.New(cfg.DKIM)
		if err != nil {
			return nil, err
		}
		if signer != nil {
			deps.logger().Debug("DKIM signing enabled",
				logging.Operation("transport.new"),
				slog.String("selector", signer.Selector()),
				slog.String("domain", signer.Domain()))
		}
		return NewSMTP(cfg.SMTP, WithDKIM(signer)), nil

	case config.TransportSES:
		if err := cfg.ValidateSES(); err != nil {
			return nil, err
		}
		if deps.SES != nil {
			return NewSESWithClient(deps.SES, cfg.SES.Sender), nil
		}
		return NewSES(ctx, cfg.SES)

	case config.TransportStdout:
		return NewStdout(deps.Stdout), nil

	default:
		return nil, mailerr.Configuration("transport.new", "unknown transport %q", name)
	}
}

// NewDispatcherFromConfig builds the primary transport and, when fallback is
// enabled and its configuration is present, the fallback transport.
// A fallback that is enabled but not configured, or that cannot be built, is
// skipped; only the primary can fail the construction.
func NewDispatcherFromConfig(ctx context.Context, cfg *config.Config, deps Deps, opts ...DispatcherOption) (*Dispatcher, error) {
	primary, err := New(ctx, cfg.Transport.Primary, cfg, deps)
	if err != nil {
		return nil, err
	}

	d := NewDispatcher(primary, opts...)
	if !cfg.Transport.UseFallback {
		return d, nil
	}

	switch {
	case cfg.Transport.Fallback == "" || cfg.Transport.Fallback == cfg.Transport.Primary:
		d.skipped = "fallback transport is the primary transport"
	case !fallbackConfigured(cfg):
		d.skipped = cfg.Transport.Fallback + " fallback is not configured"
	default:
		fallback, err := New(ctx, cfg.Transport.Fallback, cfg, deps)
		if err != nil {
			d.skipped = cfg.Transport.Fallback + " fallback is unusable: " + err.Error()
			d.logger.Warn("Fallback transport could not be built",
				logging.Operation("transport.new"),
				slog.String("fallback", cfg.Transport.Fallback),
				logging.Err(err))
			return d, nil
		}
		d.fallback = fallback
	}
	return d, nil
}

func fallbackConfigured(cfg *config.Config) bool {
	switch cfg.Transport.Fallback {
	case config.TransportSMTP:
		return cfg.SMTPConfigured()
	case config.TransportSES:
		return cfg.SES.Region != ""
	default:
		return true
	}
}
