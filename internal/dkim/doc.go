// Package dkim signs outgoing messages submitted over SMTP.
//
// Signing is optional. It is enabled by any of the dkim.* config keys or the
// SMTP_DKIM_* environment variables, and then requires a selector and a PEM
// private key (PKCS#1 or PKCS#8). Messages are signed with relaxed/relaxed
// canonicalization.
package dkim
