package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mailout/internal/google"
)

func newAuthCmd(global *globalOptions) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail sending and cache the token",
		Long: `Run the Gmail OAuth2 authorization and cache the resulting token.

A cached token is reused as is. Otherwise the authorization URL is printed
and opened in the browser; the redirect is captured on a local port, or the
code can be pasted at the prompt. GOOGLE_AUTH_TIMEOUT bounds the wait.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.close()

			opts := a.googleOptions()
			if noBrowser {
				opts = append(opts, google.WithBrowser(nil))
			}
			auth, err := google.NewAuthorizer(a.cfg.Google, nil, opts...)
			if err != nil {
				return err
			}
			if _, err := auth.Token(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Authorized; token cached at %s\n", a.cfg.Google.TokenPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL without opening a browser")

	return cmd
}
