// Package message assembles outgoing mail into a MIME payload.
//
// A payload always carries a multipart/alternative body with exactly one
// text/plain and one text/html part. When attachments are present the
// alternative part is nested inside multipart/mixed and each attachment is
// base64 encoded with 76 column lines.
//
// The same Payload is handed to every transport: the Gmail API receives it
// base64url encoded (Payload.Raw), SMTP and SES receive Payload.Data as is.
package message
