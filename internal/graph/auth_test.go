package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// countingSource hands out numbered tokens that live for ttl.
type countingSource struct {
	calls int
	now   func() time.Time
	ttl   time.Duration
	err   error
}

func (s *countingSource) Token(ctx context.Context) (*Token, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Token{
		AccessToken: fmt.Sprintf("token-%d", s.calls),
		ExpiresOn:   s.now().Add(s.ttl),
	}, nil
}

func TestAuthenticator_CachesUntilExpiry(t *testing.T) {
	clock := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	src := &countingSource{now: now, ttl: time.Hour}
	var out bytes.Buffer
	auth := NewAuthenticator(src, &out, nil)
	auth.now = now

	ctx := context.Background()

	tests := []struct {
		name      string
		advance   time.Duration
		wantValue string
		wantCalls int
	}{
		{"first call issues", 0, "Bearer token-1", 1},
		{"reused before expiry", 59 * time.Minute, "Bearer token-1", 1},
		{"reissued at exact expiry", time.Minute, "Bearer token-2", 2},
		{"reused again", time.Second, "Bearer token-2", 2},
	}

	for _, tt := range tests {
		clock = clock.Add(tt.advance)
		got, err := auth.Authorization(ctx)
		if err != nil {
			t.Fatalf("%s: Authorization() error = %v", tt.name, err)
		}
		if got != tt.wantValue {
			t.Errorf("%s: Authorization() = %q, want %q", tt.name, got, tt.wantValue)
		}
		if src.calls != tt.wantCalls {
			t.Errorf("%s: source calls = %d, want %d", tt.name, src.calls, tt.wantCalls)
		}
	}

	if n := strings.Count(out.String(), "[+] Authenticated to Microsoft365"); n != 2 {
		t.Errorf("success lines = %d, want 2\n%s", n, out.String())
	}
}

func TestAuthenticator_FailureIsReported(t *testing.T) {
	src := &countingSource{now: time.Now, err: &AuthenticationError{StatusCode: 401, Err: errors.New("invalid_client")}}
	var out bytes.Buffer
	auth := NewAuthenticator(src, &out, nil)

	_, err := auth.AccessToken(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.StatusCode != 401 {
		t.Fatalf("AccessToken() error = %v, want AuthenticationError with status 401", err)
	}
	want := "[-] Error authenticating to Microsoft365. Status: 401. Check your application ID, tenant ID, and application secret.\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func newTokenServer(t *testing.T, status int, body string, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/contoso.onmicrosoft.com/oauth2/v2.0/token" {
			t.Errorf("unexpected token request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		wantForm := map[string]string{
			"client_id":     "11111111-2222-3333-4444-555555555555",
			"client_secret": "s3cret",
			"scope":         "https://graph.microsoft.com/.default",
			"grant_type":    "client_credentials",
		}
		for k, v := range wantForm {
			if got := r.PostForm.Get(k); got != v {
				t.Errorf("form %s = %q, want %q", k, got, v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestSecretSource_Token(t *testing.T) {
	var requests atomic.Int32
	srv := newTokenServer(t, http.StatusOK, `{"token_type":"Bearer","expires_in":3599,"access_token":"eyJ.abc.def"}`, &requests)
	defer srv.Close()

	creds := Credentials{TenantID: "contoso.onmicrosoft.com", ClientID: "11111111-2222-3333-4444-555555555555", ClientSecret: "s3cret"}
	src := NewSecretSource(creds, srv.URL+"/", "https://graph.microsoft.com/.default", srv.Client())

	before := time.Now()
	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "eyJ.abc.def" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
	if tok.ExpiresOn.Before(before.Add(59*time.Minute)) || tok.ExpiresOn.After(time.Now().Add(time.Hour)) {
		t.Errorf("ExpiresOn = %v, want about one hour from now", tok.ExpiresOn)
	}
	if requests.Load() != 1 {
		t.Errorf("token requests = %d, want 1", requests.Load())
	}
}

func TestSecretSource_Unauthorized(t *testing.T) {
	var requests atomic.Int32
	srv := newTokenServer(t, http.StatusUnauthorized, `{"error":"invalid_client","error_description":"AADSTS7000215: Invalid client secret provided."}`, &requests)
	defer srv.Close()

	creds := Credentials{TenantID: "contoso.onmicrosoft.com", ClientID: "11111111-2222-3333-4444-555555555555", ClientSecret: "s3cret"}
	src := NewSecretSource(creds, srv.URL, "https://graph.microsoft.com/.default", srv.Client())

	_, err := src.Token(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Token() error = %v, want *AuthenticationError", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
	}
}

func TestSecretSource_NoResponse(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	creds := Credentials{TenantID: "contoso.onmicrosoft.com", ClientID: "id", ClientSecret: "s"}
	_, err := NewSecretSource(creds, url, "https://graph.microsoft.com/.default", nil).Token(context.Background())

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Token() error = %v, want *AuthenticationError", err)
	}
	if authErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 without a response", authErr.StatusCode)
	}
}

func TestDefaultScope(t *testing.T) {
	tests := []struct {
		graphURL string
		want     string
		wantErr  bool
	}{
		{"https://graph.microsoft.com/v1.0/", "https://graph.microsoft.com/.default", false},
		{"https://graph.microsoft.us/v1.0", "https://graph.microsoft.us/.default", false},
		{"https://microsoftgraph.chinacloudapi.cn/beta/", "https://microsoftgraph.chinacloudapi.cn/.default", false},
		{"graph.microsoft.com", "", true},
	}

	for _, tt := range tests {
		got, err := DefaultScope(tt.graphURL)
		if (err != nil) != tt.wantErr {
			t.Errorf("DefaultScope(%q) error = %v, wantErr %v", tt.graphURL, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("DefaultScope(%q) = %q, want %q", tt.graphURL, got, tt.want)
		}
	}
}

func TestTokenURL(t *testing.T) {
	tests := []struct {
		authority string
		want      string
	}{
		{"https://login.microsoftonline.com/", "https://login.microsoftonline.com/contoso.com/oauth2/v2.0/token"},
		{"https://login.microsoftonline.us", "https://login.microsoftonline.us/contoso.com/oauth2/v2.0/token"},
	}
	for _, tt := range tests {
		if got := TokenURL(tt.authority, "contoso.com"); got != tt.want {
			t.Errorf("TokenURL(%q) = %q, want %q", tt.authority, got, tt.want)
		}
	}
}

func TestCredentials_Method(t *testing.T) {
	tests := []struct {
		creds Credentials
		want  string
	}{
		{Credentials{ClientSecret: "x"}, "client secret"},
		{Credentials{PfxPath: "app.pfx"}, "certificate"},
		{Credentials{}, "none"},
	}
	for _, tt := range tests {
		if got := tt.creds.Method(); got != tt.want {
			t.Errorf("Method() = %q, want %q", got, tt.want)
		}
	}

	if _, err := NewTokenSource(Credentials{}, DefaultAuthority, "s", nil, nil); err == nil {
		t.Error("NewTokenSource() with no secret or certificate should fail")
	}
}
