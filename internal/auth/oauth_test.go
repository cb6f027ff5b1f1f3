package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/agis/unical/internal/contract"
)

func TestConfigEndpoints(t *testing.T) {
	g, err := Config(contract.SourceGoogle, Credentials{ClientID: "gid"})
	if err != nil {
		t.Fatalf("google config: %v", err)
	}
	if !strings.Contains(g.Endpoint.TokenURL, "googleapis.com") || g.RedirectURL != DefaultRedirectURL {
		t.Fatalf("unexpected google config: %+v", g)
	}
	if len(g.Scopes) != 1 || !strings.Contains(g.Scopes[0], "auth/calendar") {
		t.Fatalf("unexpected google scopes: %v", g.Scopes)
	}

	o, err := Config(contract.SourceOutlook, Credentials{ClientID: "oid", Tenant: "contoso"})
	if err != nil {
		t.Fatalf("outlook config: %v", err)
	}
	if !strings.Contains(o.Endpoint.AuthURL, "/contoso/") {
		t.Fatalf("expected tenant in auth URL, got %s", o.Endpoint.AuthURL)
	}
	if strings.Join(o.Scopes, " ") != "Calendars.ReadWrite offline_access" {
		t.Fatalf("unexpected outlook scopes: %v", o.Scopes)
	}

	if _, err := Config(contract.SourceGoogle, Credentials{}); err == nil {
		t.Fatalf("expected error without client id")
	}
	if _, err := Config("icloud", Credentials{ClientID: "x"}); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func tokenServer(t *testing.T, access string, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"`+access+`","token_type":"Bearer","refresh_token":"r-new","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  DefaultRedirectURL,
		Endpoint:     oauth2.Endpoint{AuthURL: "https://auth.example/authorize", TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestLoginExchangesPastedCode(t *testing.T) {
	srv := tokenServer(t, "fresh", nil)
	var out bytes.Buffer
	tok, err := Login(context.Background(), testConfig(srv.URL), strings.NewReader("abc123\n"), &out)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.AccessToken != "fresh" || tok.RefreshToken != "r-new" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if !strings.Contains(out.String(), "https://auth.example/authorize") || !strings.Contains(out.String(), "access_type=offline") {
		t.Fatalf("consent URL not printed: %s", out.String())
	}
}

func TestExtractCode(t *testing.T) {
	code, err := extractCode("http://localhost/?state=s1&code=xyz", "s1")
	if err != nil || code != "xyz" {
		t.Fatalf("extractCode = %q, %v", code, err)
	}
	if _, err := extractCode("http://localhost/?state=other&code=xyz", "s1"); err == nil {
		t.Fatalf("expected state mismatch")
	}
	if code, _ := extractCode("plain-code", "s1"); code != "plain-code" {
		t.Fatalf("expected raw code passthrough, got %q", code)
	}
	if _, err := extractCode("", "s1"); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestClientRefreshesAndPersists(t *testing.T) {
	ctx := context.Background()
	hits := 0
	tokSrv := tokenServer(t, "refreshed", &hits)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Header.Get("Authorization"))
	}))
	defer api.Close()

	store := openTestStore(t)
	expired := &oauth2.Token{AccessToken: "stale", RefreshToken: "r-old", Expiry: time.Now().Add(-time.Hour)}
	if err := store.Save(ctx, contract.SourceOutlook, "", expired); err != nil {
		t.Fatalf("Save: %v", err)
	}

	client, err := Client(ctx, testConfig(tokSrv.URL), store, contract.SourceOutlook, "")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	resp, err := client.Get(api.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "Bearer refreshed" {
		t.Fatalf("unexpected Authorization header %q", body)
	}
	if hits != 1 {
		t.Fatalf("expected one refresh, got %d", hits)
	}
	saved, err := store.Load(ctx, contract.SourceOutlook, "")
	if err != nil || saved.AccessToken != "refreshed" {
		t.Fatalf("refreshed token not persisted: %v %+v", err, saved)
	}
}

func TestClientWithoutTokenFails(t *testing.T) {
	store := openTestStore(t)
	if _, err := Client(context.Background(), testConfig("http://unused"), store, contract.SourceGoogle, ""); err == nil {
		t.Fatalf("expected error without stored token")
	}
}
