// Package gmail submits prebuilt MIME messages through the Gmail API.
//
// The client only uses users.messages.send with the raw (base64url) form of
// the message, so it needs nothing beyond the gmail.send scope. The HTTP
// client is expected to carry the OAuth2 credentials; see package google.
//
// Example usage:
//
//	httpClient, err := authorizer.Client(ctx)
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, httpClient)
//	if err != nil {
//	    return err
//	}
//	id, err := client.Send(ctx, payload.Raw())
package gmail
