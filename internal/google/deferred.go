package google

import (
	"context"
	"net/http"
	"sync"

	"github.com/teemow/mailout/internal/config"
)

// Deferred creates its Authorizer on first use. Missing client credentials
// then fail the send that needed them, which leaves room for a fallback
// transport, instead of failing at startup.
type Deferred struct {
	cfg   config.GoogleConfig
	store CredentialStore
	opts  []Option

	once sync.Once
	auth *Authorizer
	err  error
}

// NewDeferred returns a Deferred for the given NewAuthorizer arguments.
func NewDeferred(cfg config.GoogleConfig, store CredentialStore, opts ...Option) *Deferred {
	return &Deferred{cfg: cfg, store: store, opts: opts}
}

// Authorizer returns the Authorizer, creating it on the first call.
func (d *Deferred) Authorizer() (*Authorizer, error) {
	d.once.Do(func() {
		d.auth, d.err = NewAuthorizer(d.cfg, d.store, d.opts...)
	})
	return d.auth, d.err
}

// Client returns the authorized HTTP client.
func (d *Deferred) Client(ctx context.Context) (*http.Client, error) {
	a, err := d.Authorizer()
	if err != nil {
		return nil, err
	}
	return a.Client(ctx)
}
