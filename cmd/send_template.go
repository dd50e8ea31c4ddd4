package cmd

import (
	"github.com/spf13/cobra"

	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
	"github.com/teemow/mailout/internal/template"
)

const (
	defaultTemplatePath    = "docs/templates/welcome-email.html"
	defaultTemplateSubject = "Welcome"
)

func newSendTemplateCmd(global *globalOptions) *cobra.Command {
	var (
		to, from, subject string
		templatePath      string
		pairs             []string
		varsJSON          string
		varsFile          string
	)

	cmd := &cobra.Command{
		Use:   "send-template",
		Short: "Render an HTML template and send it",
		Long: `Render an HTML template and send it to one recipient.

Placeholders are written {{name}}, <name> or &lt;name&gt;. Values come from
--vars-file, then --vars, then --var; later sources win. An unknown {{name}}
renders empty; unknown angle-bracket placeholders are left as they are.
The plain text part is derived from the rendered HTML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := template.Vars{}
			if varsFile != "" {
				if err := vars.MergeFile(varsFile); err != nil {
					return mailerr.Validation("cmd.send-template", "invalid --vars-file (must be a JSON file): %v", err)
				}
			}
			if varsJSON != "" {
				if err := vars.MergeJSON([]byte(varsJSON)); err != nil {
					return mailerr.Validation("cmd.send-template", "invalid JSON for --vars: %v", err)
				}
			}
			for _, pair := range pairs {
				if err := vars.SetPair(pair); err != nil {
					return mailerr.Validation("cmd.send-template", "%v", err)
				}
			}

			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.close()

			tmpl, err := readFile("cmd.send-template", templatePath)
			if err != nil {
				return err
			}
			html := template.Render(tmpl, vars)

			msg := &message.OutgoingMessage{
				From:    a.sender(from),
				To:      a.recipient(to),
				Subject: firstNonEmpty(subject, defaultTemplateSubject),
				Text:    template.HTMLToText(html),
				HTML:    html,
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
	cmd.Flags().StringVar(&subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&templatePath, "template", defaultTemplatePath, "HTML template file")
	cmd.Flags().StringArrayVar(&pairs, "var", nil, "Template value as key=value; may be repeated")
	cmd.Flags().StringVar(&varsJSON, "vars", "", "Template values as a JSON object")
	cmd.Flags().StringVar(&varsFile, "vars-file", "", "JSON file with template values")

	return cmd
}
