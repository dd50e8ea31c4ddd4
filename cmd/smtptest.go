package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/message"
	"github.com/teemow/mailout/internal/transport"
)

const (
	defaultSMTPTestSubject = "mailout test email"
	defaultSMTPTestText    = "This is a test email sent via SMTP."
)

func newSMTPTestCmd(global *globalOptions) *cobra.Command {
	var to, from string

	cmd := &cobra.Command{
		Use:   "smtp-test",
		Short: "Send a test message directly over SMTP",
		Long: `Send a test message through the SMTP relay only, bypassing the primary
transport and any fallback. Useful to check SMTP_HOST, SMTP_PORT, SMTP_USER,
SMTP_PASS and SMTP_SECURE.

The sender defaults to FROM_EMAIL, then the SMTP user. SUBJECT, TEXT and HTML
override the test content.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.close()

			smtp, err := transport.New(cmd.Context(), config.TransportSMTP, a.cfg, a.deps())
			if err != nil {
				return err
			}
			dispatcher := transport.NewDispatcher(smtp,
				transport.WithLogger(a.logger),
				transport.WithMetrics(a.provider.Metrics()))

			d := a.cfg.Defaults
			text := firstNonEmpty(d.Text, defaultSMTPTestText)
			msg := &message.OutgoingMessage{
				From:    firstNonEmpty(from, d.From, a.cfg.SMTP.User),
				To:      a.recipient(to),
				Subject: firstNonEmpty(d.Subject, defaultSMTPTestSubject),
				Text:    text,
				HTML:    firstNonEmpty(d.HTML, fmt.Sprintf("<p>%s</p>", text)),
			}
			_, err = a.send(cmd.Context(), dispatcher, msg)
			return err
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient address (env: TO_EMAIL)")
	cmd.Flags().StringVar(&from, "from", "", "Sender address (env: FROM_EMAIL)")

	return cmd
}
