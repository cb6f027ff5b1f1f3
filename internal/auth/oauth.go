package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/calendar/v3"

	"github.com/agis/unical/internal/contract"
)

const (
	DefaultRedirectURL = "http://localhost"
	DefaultTenant      = "common"
)

var MicrosoftScopes = []string{"Calendars.ReadWrite", "offline_access"}

// Credentials are the OAuth client registration for one provider.
type Credentials struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURL  string `toml:"redirect_url"`
	Tenant       string `toml:"tenant"`
}

func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.ClientID) != ""
}

func Config(source contract.Source, creds Credentials) (*oauth2.Config, error) {
	if !creds.Configured() {
		return nil, fmt.Errorf("%s client_id is not configured", source)
	}
	redirect := creds.RedirectURL
	if redirect == "" {
		redirect = DefaultRedirectURL
	}
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirect,
	}
	switch source {
	case contract.SourceGoogle:
		cfg.Endpoint = google.Endpoint
		cfg.Scopes = []string{calendar.CalendarScope}
	case contract.SourceOutlook:
		tenant := creds.Tenant
		if tenant == "" {
			tenant = DefaultTenant
		}
		cfg.Endpoint = microsoft.AzureADEndpoint(tenant)
		cfg.Scopes = MicrosoftScopes
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
	return cfg, nil
}

// Login runs the offline authorization-code flow: print the consent URL to
// out, read the code (or the full redirect URL) from in, and exchange it.
func Login(ctx context.Context, cfg *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	state := uuid.NewString()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	_, _ = fmt.Fprintf(out, "Open this link in your browser and approve access:\n%s\n\nPaste the code or the redirected URL: ", authURL)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	code, err := extractCode(strings.TrimSpace(line), state)
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
	}
	return tok, nil
}

func extractCode(input, state string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("authorization code is empty")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if got := q.Get("state"); got != "" && got != state {
		return "", fmt.Errorf("state mismatch in redirect URL")
	}
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL has no code")
	}
	return code, nil
}

// Client returns an HTTP client authorized with the stored token. Refreshed
// tokens are written back to store.
func Client(ctx context.Context, cfg *oauth2.Config, store *Store, source contract.Source, account string) (*http.Client, error) {
	tok, err := store.Load(ctx, source, account)
	if err != nil {
		return nil, err
	}
	ts := &persistingTokenSource{
		ctx:     context.WithoutCancel(ctx),
		base:    oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok)),
		store:   store,
		source:  source,
		account: account,
		last:    tok.AccessToken,
	}
	return oauth2.NewClient(ctx, ts), nil
}

type persistingTokenSource struct {
	ctx     context.Context
	base    oauth2.TokenSource
	store   *Store
	source  contract.Source
	account string

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%s token refresh failed: %w", p.source, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.store.Save(p.ctx, p.source, p.account, tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
