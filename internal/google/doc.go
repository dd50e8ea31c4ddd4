// Package google provides the OAuth2 credential manager for sending mail
// through the Gmail API.
//
// An Authorizer returns a cached credential from its CredentialStore when one
// with an access token exists. Otherwise it runs the interactive
// authorization-code flow: a loopback listener on 127.0.0.1 receives the
// redirect, and a console prompt accepts a code pasted from the out-of-band
// flow. Whichever produces a code first wins, the code is exchanged at the
// token endpoint, and the token is written back to the store.
//
// The flow is bounded by a timeout and moves through the states
// AwaitingCode, Exchanging, then Authorized or Failed.
package google
