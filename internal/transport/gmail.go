package transport

import (
	"context"
	"net/http"

	"google.golang.org/api/option"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/gmail"
	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
)

// ClientProvider returns an HTTP client carrying OAuth2 credentials.
// *google.Authorizer implements it.
type ClientProvider interface {
	Client(ctx context.Context) (*http.Client, error)
}

// Gmail sends through the Gmail API as the authorized user.
type Gmail struct {
	auth ClientProvider
	opts []option.ClientOption
}

// NewGmail returns a Gmail transport. opts are passed to the API client.
func NewGmail(auth ClientProvider, opts ...option.ClientOption) *Gmail {
	return &Gmail{auth: auth, opts: opts}
}

// Name returns "gmail".
func (g *Gmail) Name() string { return config.TransportGmail }

// Send authorizes, then submits p as a raw message. Authorization failures
// are returned as auth errors, API failures as transport errors.
func (g *Gmail) Send(ctx context.Context, p *message.Payload) (Result, error) {
	httpClient, err := g.auth.Client(ctx)
	if err != nil {
		if mailerr.KindOf(err) == nil {
			err = mailerr.Auth("transport.gmail", err)
		}
		return Result{}, err
	}

	client, err := gmail.NewClient(ctx, httpClient, g.opts...)
	if err != nil {
		return Result{}, mailerr.Transport("transport.gmail", err)
	}

	id, err := client.Send(ctx, p.Raw())
	if err != nil {
		return Result{}, mailerr.Transport("transport.gmail", err)
	}
	return Result{ID: id, Transport: g.Name()}, nil
}
