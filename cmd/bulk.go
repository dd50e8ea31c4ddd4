package cmd

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/teemow/mailout/internal/logging"
	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
	"github.com/teemow/mailout/internal/sheet"
	"github.com/teemow/mailout/internal/template"
)

type bulkOptions struct {
	file         string
	templatePath string
	subject      string
	to           string
	from         string
	toColumn     string
	columns      []string
	random       bool
}

func newBulkCmd(global *globalOptions) *cobra.Command {
	opts := &bulkOptions{}

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Send a rendered template for spreadsheet rows",
		Long: `Read rows from a CSV or XLSX file and send one rendered message per row.

Every column is available as a {{column}} placeholder. --column maps a
placeholder to the first non-empty of several columns, for example
--column "name=Full name,Name". The subject may contain placeholders too.

Rows are sent one after another. A failed row is logged and the remaining
rows are still sent; the command fails if any row failed. With --random a
single random row is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "CSV or XLSX file with one recipient per row (required)")
	cmd.Flags().StringVar(&opts.templatePath, "template", "", "HTML template file (required)")
	cmd.Flags().StringVar(&opts.subject, "subject", defaultTemplateSubject, "Subject; may contain placeholders")
	cmd.Flags().StringVar(&opts.to, "to", "", "Recipient when the row has none (env: TO_EMAIL)")
	cmd.Flags().StringVar(&opts.from, "from", "", "Sender address (env: FROM_EMAIL, GMAIL_SENDER)")
	cmd.Flags().StringVar(&opts.toColumn, "to-column", "", "Column holding the recipient address")
	cmd.Flags().StringArrayVar(&opts.columns, "column", nil, "Placeholder mapping name=column[,column...]; may be repeated")
	cmd.Flags().BoolVar(&opts.random, "random", false, "Send to one randomly chosen row only")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runBulk(cmd *cobra.Command, global *globalOptions, opts *bulkOptions) error {
	columns := sheet.Columns{}
	for _, spec := range opts.columns {
		if err := columns.ParseColumn(spec); err != nil {
			return mailerr.Validation("cmd.bulk", "%v", err)
		}
	}

	a, err := newApp(cmd, global)
	if err != nil {
		return err
	}
	defer a.close()

	tmpl, err := readFile("cmd.bulk", opts.templatePath)
	if err != nil {
		return err
	}
	rows, err := sheet.Read(opts.file)
	if err != nil {
		return mailerr.Configuration("cmd.bulk", "%v", err)
	}
	if len(rows) == 0 {
		return mailerr.Validation("cmd.bulk", "no rows in %s", opts.file)
	}
	if opts.random {
		rows = []sheet.Row{rows[rand.IntN(len(rows))]}
	}

	dispatcher, err := a.dispatcher(cmd.Context())
	if err != nil {
		return err
	}

	logger := logging.WithOperation(a.logger, "cmd.bulk")
	from := a.sender(opts.from)
	failed := 0
	for i, row := range rows {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		vars := columns.Vars(row)
		html := template.Render(tmpl, vars)
		msg := &message.OutgoingMessage{
			From:    from,
			To:      firstNonEmpty(row.Get(opts.toColumn), a.recipient(opts.to)),
			Subject: template.Render(opts.subject, vars),
			Text:    template.HTMLToText(html),
			HTML:    template.HardenBody(html),
		}

		if _, err := a.send(cmd.Context(), dispatcher, msg); err != nil {
			failed++
			logger.Error("Failed to send row",
				slog.Int("row", i+1),
				logging.UserHash(msg.To),
				logging.Err(err))
		}
	}

	fmt.Fprintf(a.stdout, "Sent %d of %d messages\n", len(rows)-failed, len(rows))
	if failed > 0 {
		return fmt.Errorf("%d of %d messages failed", failed, len(rows))
	}
	return nil
}
