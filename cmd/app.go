package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/google"
	"github.com/teemow/mailout/internal/instrumentation"
	"github.com/teemow/mailout/internal/logging"
	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
	"github.com/teemow/mailout/internal/transport"
)

// dotEnvPath is loaded from the working directory before the config.
const dotEnvPath = ".env"

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	transport  string
	fallback   bool
}

// app carries the configuration and collaborators of one invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

// newApp loads configuration and sets up logging and instrumentation.
// Callers must call close.
func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.transport != "" {
		cfg.Transport.Primary = strings.ToLower(strings.TrimSpace(opts.transport))
	}
	if opts.fallback {
		cfg.Transport.UseFallback = true
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, mailerr.Configuration("cmd.logging", "%v", err)
	}
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(cmd.Context(), instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	logger.Debug("Configuration loaded",
		slog.String("transport", cfg.Transport.Primary),
		slog.Bool("fallback", cfg.Transport.UseFallback),
		slog.Bool("instrumentation", provider.Enabled()))

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		stdin:    cmd.InOrStdin(),
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
	}, nil
}

// close flushes telemetry.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("Error during instrumentation shutdown", logging.Err(err))
	}
}

// authorizer returns a Gmail authorizer that is only created when a Gmail
// send needs it, so missing client credentials fail that send and not the
// whole invocation.
func (a *app) authorizer() *google.Deferred {
	return google.NewDeferred(a.cfg.Google, nil, a.googleOptions()...)
}

func (a *app) googleOptions() []google.Option {
	return []google.Option{
		google.WithLogger(a.logger),
		google.WithMetrics(a.provider.Metrics()),
		google.WithConsole(a.stdin, a.stderr),
	}
}

func (a *app) deps() transport.Deps {
	return transport.Deps{
		Auth:   a.authorizer(),
		Stdout: a.stdout,
		Logger: a.logger,
	}
}

// dispatcher builds the primary transport and the fallback from the config.
func (a *app) dispatcher(ctx context.Context) (*transport.Dispatcher, error) {
	return transport.NewDispatcherFromConfig(ctx, a.cfg, a.deps(),
		transport.WithLogger(a.logger),
		transport.WithMetrics(a.provider.Metrics()))
}

// sender resolves the sending identity: the flag, FROM_EMAIL, the Gmail
// sender, then the SMTP user when SMTP may carry the message.
func (a *app) sender(flag string) string {
	for _, v := range []string{flag, a.cfg.Defaults.From, a.cfg.GmailAPI.Sender} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if a.smtpInvolved() {
		return a.cfg.SMTP.User
	}
	return ""
}

func (a *app) smtpInvolved() bool {
	t := a.cfg.Transport
	return t.Primary == config.TransportSMTP || (t.UseFallback && t.Fallback == config.TransportSMTP)
}

// recipient returns the flag or TO_EMAIL.
func (a *app) recipient(flag string) string {
	if v := strings.TrimSpace(flag); v != "" {
		return v
	}
	return a.cfg.Defaults.To
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// send dispatches msg and prints the success line.
func (a *app) send(ctx context.Context, d *transport.Dispatcher, msg *message.OutgoingMessage) (transport.Result, error) {
	res, err := d.Send(ctx, msg)
	if err != nil {
		return res, err
	}
	printResult(a.stdout, res)
	return res, nil
}

func printResult(w io.Writer, res transport.Result) {
	if res.Fallback {
		fmt.Fprintf(w, "Email sent via %s fallback: %s\n", res.Transport, res.ID)
		return
	}
	fmt.Fprintf(w, "Email sent: %s\n", res.ID)
}

// readFile reads a template or similar input named by a flag.
func readFile(op, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", mailerr.Configuration(op, "failed to read %s: %v", path, err)
	}
	return string(data), nil
}
