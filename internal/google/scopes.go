package google

import gmail "google.golang.org/api/gmail/v1"

// SendScopes are the only scopes requested: sending on behalf of the
// configured identity.
var SendScopes = []string{
	gmail.GmailSendScope,
}

// OutOfBandRedirect is the redirect URI used for manually pasted codes when
// GOOGLE_REDIRECT_URI is not set.
const OutOfBandRedirect = "urn:ietf:wg:oauth:2.0:oob"
