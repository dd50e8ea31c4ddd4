package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mailout/internal/message"
)

const (
	defaultSendSubject = "mailout config test email"
	defaultSendText    = "This is a test email sent using the core-config.yaml settings."
)

func newSendCmd(global *globalOptions) *cobra.Command {
	var (
		to, from, subject, text, html string
		attachments                   []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single message",
		Long: `Send one message through the configured transport.

Values not given as flags come from TO_EMAIL, FROM_EMAIL or GMAIL_SENDER,
SUBJECT, TEXT and HTML. Without any HTML the text is wrapped in a paragraph.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.close()

			d := a.cfg.Defaults
			text := firstNonEmpty(text, d.Text, defaultSendText)
			msg := &message.OutgoingMessage{
				From:    a.sender(from),
				To:      a.recipient(to),
				Subject: firstNonEmpty(subject, d.Subject, defaultSendSubject),
				Text:    text,
				HTML:    firstNonEmpty(html, d.HTML, fmt.Sprintf("<p>%s</p>", text)),
			}
			for _, path := range attachments {
				msg.Attachments = append(msg.Attachments, message.AttachmentFromFile(path))
			}

			dispatcher, err := a.dispatcher(cmd.Context())
			if err != nil {
				return err
			}
			_, err = a.send(cmd.Context(), dispatcher, msg)
			return err
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient address (env: TO_EMAIL)")
	cmd.Flags().StringVar(&from, "from", "", "Sender address (env: FROM_EMAIL, GMAIL_SENDER)")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (env: SUBJECT)")
	cmd.Flags().StringVar(&text, "text", "", "Plain text body (env: TEXT)")
	cmd.Flags().StringVar(&html, "html", "", "HTML body (env: HTML)")
	cmd.Flags().StringArrayVar(&attachments, "attach", nil, "File to attach; may be repeated")

	return cmd
}
