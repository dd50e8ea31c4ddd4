package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultUser is the Gmail user id for the authorized account.
const DefaultUser = "me"

// ErrUnauthorized is returned when Gmail rejects the credential, which
// usually means the cached token is stale or revoked.
var ErrUnauthorized = errors.New("gmail rejected the credential")

// Client wraps the Gmail Users service.
type Client struct {
	svc  *gmail.UsersService
	user string
}

// NewClient creates a Gmail client that authenticates with httpClient.
// Extra options are passed to the API client, e.g. option.WithEndpoint in
// tests.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Client{svc: svc.Users, user: DefaultUser}, nil
}

// Send submits raw, a base64url-encoded RFC 5322 message, and returns the
// provider's message id.
func (c *Client) Send(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", errors.New("raw message is required")
	}

	sent, err := c.svc.Messages.Send(c.user, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
			return "", fmt.Errorf("%w (HTTP %d): %s; remove the cached token to re-authorize", ErrUnauthorized, apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return sent.Id, nil
}
