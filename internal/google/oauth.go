package google

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/instrumentation"
	"github.com/teemow/mailout/internal/logging"
	"github.com/teemow/mailout/internal/mailerr"
)

// State is a step of the interactive authorization flow.
type State int

const (
	StateAwaitingCode State = iota
	StateExchanging
	StateAuthorized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingCode:
		return "awaiting_code"
	case StateExchanging:
		return "exchanging"
	case StateAuthorized:
		return "authorized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Code sources.
const (
	SourceLoopback = "loopback"
	SourceConsole  = "console"
)

// Authorizer obtains and caches the OAuth2 token for the sending identity.
type Authorizer struct {
	clientID     string
	clientSecret string
	redirectURI  string
	redirectPort int
	timeout      time.Duration
	endpoint     oauth2.Endpoint

	store       CredentialStore
	openBrowser func(string) error
	input       io.Reader
	output      io.Writer
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	onState     func(State)
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithEndpoint overrides the Google OAuth2 endpoint.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(a *Authorizer) { a.endpoint = ep }
}

// WithBrowser replaces the browser opener. A nil opener disables it.
func WithBrowser(open func(string) error) Option {
	return func(a *Authorizer) { a.openBrowser = open }
}

// WithConsole sets where the manual code is read from and where prompts are
// written. A nil input disables the console path.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(a *Authorizer) {
		a.input = in
		a.output = out
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) { a.logger = logger }
}

// WithMetrics records authorization outcomes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(a *Authorizer) { a.metrics = m }
}

// WithStateHook is called on every state transition of the interactive flow.
func WithStateHook(fn func(State)) Option {
	return func(a *Authorizer) { a.onState = fn }
}

// NewAuthorizer creates an Authorizer for the configured OAuth2 client.
// It fails with an auth error when the client id or secret is missing.
func NewAuthorizer(cfg config.GoogleConfig, store CredentialStore, opts ...Option) (*Authorizer, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, mailerr.Auth("google.authorizer", errors.New("missing GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET; create an OAuth desktop client in Google Cloud and set both"))
	}
	if store == nil {
		path := cfg.TokenPath
		if path == "" {
			path = config.DefaultTokenPath()
		}
		store = NewFileStore(path)
	}

	a := &Authorizer{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		redirectPort: cfg.RedirectPort,
		timeout:      cfg.AuthTimeout,
		endpoint:     googleoauth.Endpoint,
		store:        store,
		openBrowser:  OpenBrowser,
		input:        os.Stdin,
		output:       os.Stderr,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.output == nil {
		a.output = io.Discard
	}
	return a, nil
}

func (a *Authorizer) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Endpoint:     a.endpoint,
		RedirectURL:  redirectURL,
		Scopes:       SendScopes,
	}
}

// Token returns the cached token when it carries an access token, and runs
// the interactive flow otherwise. Expiry is not checked here; a stale token
// surfaces when the provider rejects it or oauth2 refreshes it.
func (a *Authorizer) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.store.Load(ctx)
	switch {
	case err == nil && tok != nil && tok.AccessToken != "":
		a.logger.Debug("Using cached credential",
			logging.Operation("google.token"),
			slog.String("token", logging.SanitizeToken(tok.AccessToken)))
		return tok, nil
	case err != nil && !errors.Is(err, ErrNoCredential):
		a.logger.Warn("Ignoring unreadable cached credential",
			logging.Operation("google.token"),
			logging.Err(err))
	}

	tok, err = a.Authorize(ctx)
	if err != nil {
		a.metrics.RecordOAuthAuth(ctx, instrumentation.ResultFailure)
		return nil, err
	}
	a.metrics.RecordOAuthAuth(ctx, instrumentation.ResultSuccess)

	if err := a.store.Save(ctx, tok); err != nil {
		a.logger.Warn("Failed to cache credential",
			logging.Operation("google.token"),
			logging.Err(err))
	}
	return tok, nil
}

// Client returns an HTTP client that authenticates with the cached or newly
// obtained token. Refreshed tokens are written back to the store.
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	src := a.oauthConfig(a.redirectURI).TokenSource(ctx, tok)
	ts := &persistingSource{
		ctx:    ctx,
		src:    src,
		store:  a.store,
		last:   tok.AccessToken,
		logger: a.logger,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts)), nil
}

// codeResult is a code delivered by one of the two racing paths.
type codeResult struct {
	code   string
	source string
}

// Authorize runs the interactive authorization-code flow unconditionally.
func (a *Authorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	ctx, span := instrumentation.StartSpan(ctx, "oauth.authorize")
	defer span.End()

	tok, source, err := a.authorize(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(instrumentation.SpanAttrSource, source))
	instrumentation.SetSpanSuccess(span)
	return tok, nil
}

// authorize runs the flow and reports which path delivered the code.
func (a *Authorizer) authorize(ctx context.Context) (*oauth2.Token, string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	a.transition(StateAwaitingCode)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a.redirectPort))
	if err != nil {
		a.transition(StateFailed)
		return nil, "", mailerr.Auth("google.authorize", fmt.Errorf("failed to start loopback listener: %w", err))
	}
	port := ln.Addr().(*net.TCPAddr).Port
	loopbackURL := fmt.Sprintf("http://localhost:%d/", port)
	loopbackConf := a.oauthConfig(loopbackURL)

	manualRedirect := a.redirectURI
	if manualRedirect == "" {
		manualRedirect = OutOfBandRedirect
	}
	manualConf := a.oauthConfig(manualRedirect)

	state := uuid.NewString()
	authURL := loopbackConf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))

	codes := make(chan codeResult, 2)
	loopbackFailed := make(chan error, 1)

	srv := &http.Server{
		Handler:           a.callbackHandler(state, codes, loopbackFailed),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(a.output, "Authorize this app by visiting this url:\n%s\n", authURL)
	if a.openBrowser != nil {
		if err := a.openBrowser(authURL); err != nil {
			a.logger.Debug("Could not open browser", logging.Operation("google.authorize"), logging.Err(err))
		}
	}

	consoleEnabled := a.input != nil
	if consoleEnabled {
		manualURL := manualConf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
		fmt.Fprintf(a.output, "If the browser did not open, visit this url and paste the code:\n%s\nEnter the code from that page here: ", manualURL)
		go readConsoleCode(a.input, codes)
	}

	var got codeResult
	for got.code == "" {
		select {
		case <-ctx.Done():
			a.transition(StateFailed)
			return nil, "", mailerr.Auth("google.authorize", fmt.Errorf("authorization not completed: %w", ctx.Err()))
		case err := <-loopbackFailed:
			a.logger.Warn("Loopback authorization failed", logging.Operation("google.authorize"), logging.Err(err))
			if !consoleEnabled {
				a.transition(StateFailed)
				return nil, "", mailerr.Auth("google.authorize", err)
			}
		case res := <-codes:
			if res.code == "" {
				// Console closed without input; keep waiting on the loopback.
				consoleEnabled = false
				continue
			}
			got = res
		}
	}

	a.transition(StateExchanging)
	a.logger.Debug("Exchanging authorization code",
		logging.Operation("google.authorize"),
		slog.String("source", got.source))

	conf := loopbackConf
	if got.source == SourceConsole {
		conf = manualConf
	}
	tok, err := conf.Exchange(ctx, got.code)
	if err != nil {
		a.transition(StateFailed)
		return nil, "", mailerr.Auth("google.exchange", err)
	}

	a.transition(StateAuthorized)
	a.logger.Info("Authorization complete", logging.Operation("google.authorize"), slog.String("source", got.source))
	return tok, got.source, nil
}

func (a *Authorizer) transition(s State) {
	if a.onState != nil {
		a.onState(s)
	}
}

// callbackHandler delivers the first valid code and keeps answering other
// requests (favicon, retries) with a waiting page.
func (a *Authorizer) callbackHandler(state string, codes chan<- codeResult, failed chan<- error) http.Handler {
	var once sync.Once
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		if e := q.Get("error"); e != "" {
			fmt.Fprint(w, "<b>Authorization was not granted.</b> You can close this window.")
			select {
			case failed <- fmt.Errorf("authorization server returned %q", e):
			default:
			}
			return
		}

		code := q.Get("code")
		if code == "" || q.Get("state") != state {
			fmt.Fprint(w, "Waiting for authorization...")
			return
		}

		fmt.Fprint(w, "<b>Authorization complete.</b> You can close this window.")
		once.Do(func() {
			codes <- codeResult{code: strings.TrimSpace(code), source: SourceLoopback}
		})
	})
}

// readConsoleCode sends the first line read from in. An empty result means
// the input closed before a code was entered.
func readConsoleCode(in io.Reader, codes chan<- codeResult) {
	line, err := bufio.NewReader(in).ReadString('\n')
	code := strings.TrimSpace(line)
	if err != nil && code == "" {
		codes <- codeResult{source: SourceConsole}
		return
	}
	codes <- codeResult{code: code, source: SourceConsole}
}

// persistingSource saves tokens that differ from the last one seen.
type persistingSource struct {
	ctx    context.Context
	src    oauth2.TokenSource
	store  CredentialStore
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, mailerr.Auth("google.refresh", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.Save(p.ctx, tok); err != nil {
			p.logger.Warn("Failed to cache refreshed credential", logging.Operation("google.refresh"), logging.Err(err))
		}
	}
	return tok, nil
}
