package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the version command and --version.
func SetVersion(v string) {
	version = v
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "mailout",
		Short: "Render templates and send mail through Gmail, SMTP or SES",
		Long: `mailout fills HTML templates with values from flags, JSON files or
spreadsheets and sends the result.

The primary transport is the Gmail API, authorized through an interactive
OAuth2 flow whose token is cached locally. When --smtp-fallback or
USE_SMTP_FALLBACK=true is set and an SMTP relay is configured, a failed
primary send is retried once over SMTP.

Configuration is read from bmad-core/core-config.yaml, a .env file and
the environment, in that order of precedence.`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "mailout version %s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to the core config YAML (default: bmad-core/core-config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (env: LOG_LEVEL)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json (env: LOG_FORMAT)")
	flags.StringVar(&opts.transport, "transport", "", "Primary transport: gmail, smtp, ses or stdout (env: MAILOUT_TRANSPORT)")
	flags.BoolVar(&opts.fallback, "smtp-fallback", false, "Retry once through the fallback transport when the primary fails (env: USE_SMTP_FALLBACK)")

	rootCmd.AddCommand(newSendCmd(opts))
	rootCmd.AddCommand(newSendTemplateCmd(opts))
	rootCmd.AddCommand(newBulkCmd(opts))
	rootCmd.AddCommand(newSMTPTestCmd(opts))
	rootCmd.AddCommand(newAuthCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		cancel()
		os.Exit(1)
	}
}
