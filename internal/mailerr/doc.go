// Package mailerr defines the error taxonomy shared by the mailout packages.
//
// Every failure surfaced to the command layer belongs to one of four kinds:
//   - ErrConfiguration: a required setting (host, port, credentials, recipient) is absent
//   - ErrValidation: a message is missing its sender or recipient
//   - ErrAuth: application credentials are missing or the authorization flow failed
//   - ErrTransport: the send call itself was rejected or failed
//
// Kinds are matched with errors.Is:
//
//	if errors.Is(err, mailerr.ErrValidation) {
//	    // no network call was made
//	}
package mailerr
