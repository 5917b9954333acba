package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"msgraphextract/internal/common/version"
)

type staticAuth string

func (s staticAuth) Authorization(ctx context.Context) (string, error) {
	return string(s), nil
}

type failingAuth struct{ err error }

func (f failingAuth) Authorization(ctx context.Context) (string, error) {
	return "", f.err
}

func newTestClient(t *testing.T, srv *httptest.Server, base string, auth Authorizer) *Client {
	t.Helper()
	c, err := NewClient(base, auth, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestODataEquals(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"<a@contoso.com>", "internetMessageId eq '<a@contoso.com>'"},
		{"<o'brien@contoso.com>", "internetMessageId eq '<o''brien@contoso.com>'"},
		{"' or 1 eq 1 or '", "internetMessageId eq ''' or 1 eq 1 or '''"},
	}
	for _, tt := range tests {
		if got := ODataEquals("internetMessageId", tt.value); got != tt.want {
			t.Errorf("ODataEquals(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestClient_ListMessages(t *testing.T) {
	var gotFilter, gotPath, gotAuth, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFilter = r.URL.Query().Get("$filter")
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[{"@odata.etag":"W/\"CQAAABYAAAB\"","id":"AAMk1","subject":"Q3 report","size":12345,"isRead":false,"from":{"emailAddress":{"address":"a@contoso.com"}},"x-custom":{"kept":true}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, srv.URL+"/v1.0", staticAuth("Bearer t0k"))
	msgs, err := c.ListMessages(context.Background(), "legal@contoso.com", "sentitems", "<o'brien+x@contoso.com>")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}

	if gotPath != "/v1.0/users/legal@contoso.com/mailFolders/sentitems/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if want := "internetMessageId eq '<o''brien+x@contoso.com>'"; gotFilter != want {
		t.Errorf("$filter = %q, want %q", gotFilter, want)
	}
	if gotAuth != "Bearer t0k" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAgent != version.UserAgent() {
		t.Errorf("User-Agent = %q, want %q", gotAgent, version.UserAgent())
	}

	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg["subject"] != "Q3 report" {
		t.Errorf("subject = %v", msg["subject"])
	}
	if n, ok := msg["size"].(json.Number); !ok || n.String() != "12345" {
		t.Errorf("size = %#v, want json.Number 12345", msg["size"])
	}
	for _, key := range []string{"@odata.etag", "x-custom"} {
		if _, ok := msg[key]; !ok {
			t.Errorf("property %q dropped from the message", key)
		}
	}
	if _, ok := msg["@odata.type"]; ok {
		t.Error("@odata.type added to a message that did not carry it")
	}
}

func TestClient_ListMessagesWholeMailbox(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, srv.URL+"/v1.0/", staticAuth("Bearer x"))
	msgs, err := c.ListMessages(context.Background(), "u@contoso.com", "", "<a@b>")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
	if gotPath != "/v1.0/users/u@contoso.com/messages" {
		t.Errorf("path = %q, want the mailbox-wide messages collection", gotPath)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":"TooManyRequests","message":"Application is over its MailboxConcurrency limit."}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, srv.URL, staticAuth("Bearer x"))
	_, err := c.ListMessages(context.Background(), "u@contoso.com", "inbox", "<a@b>")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("ListMessages() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != 429 || statusErr.Code != "TooManyRequests" || statusErr.RetryAfter != "7" {
		t.Errorf("StatusError = %+v", statusErr)
	}
	if statusErr.Message != "Application is over its MailboxConcurrency limit." {
		t.Errorf("Message = %q", statusErr.Message)
	}
	if !statusErr.Throttled() {
		t.Error("Throttled() = false, want true")
	}
	if !strings.Contains(err.Error(), "retry after 7 seconds") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestClient_StatusErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, srv.URL, staticAuth("Bearer x"))
	_, err := c.ListAttachments(context.Background(), "u@contoso.com", "AAMk1")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("ListAttachments() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Message != "upstream unavailable" {
		t.Errorf("StatusError = %+v", statusErr)
	}
}

func TestClient_AuthenticationErrorPassesThrough(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	authErr := &AuthenticationError{StatusCode: 401, Err: errors.New("invalid_client")}
	c := newTestClient(t, srv, srv.URL, failingAuth{err: authErr})
	_, err := c.ListMessages(context.Background(), "u@contoso.com", "inbox", "<a@b>")

	var got *AuthenticationError
	if !errors.As(err, &got) {
		t.Fatalf("ListMessages() error = %v, want *AuthenticationError", err)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Error("authentication failure reported as a folder status error")
	}
	if hits.Load() != 0 {
		t.Errorf("Graph received %d requests without a token", hits.Load())
	}
}

func TestClient_ListAttachmentsFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("$skip") == "" {
			if r.URL.Path != "/users/u@contoso.com/messages/AAMk=1/attachments" {
				t.Errorf("path = %q", r.URL.Path)
			}
			fmt.Fprintf(w, `{"value":[{"@odata.type":"#microsoft.graph.fileAttachment","id":"1","name":"a.txt","contentType":"text/plain","size":3,"contentBytes":"YWJj"}],"@odata.nextLink":"%s/users/u@contoso.com/messages/AAMk=1/attachments?$skip=1"}`, srv.URL)
			return
		}
		fmt.Fprint(w, `{"value":[{"@odata.type":"#microsoft.graph.itemAttachment","id":"2","name":"fwd"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, srv.URL, staticAuth("Bearer x"))
	atts, err := c.ListAttachments(context.Background(), "u@contoso.com", "AAMk=1")
	if err != nil {
		t.Fatalf("ListAttachments() error = %v", err)
	}
	if len(atts) != 2 {
		t.Fatalf("got %d attachments, want 2", len(atts))
	}
	if string(atts[0].Content) != "abc" || atts[0].Size != 3 || atts[0].ContentType != "text/plain" {
		t.Errorf("first attachment = %+v", atts[0])
	}
	if atts[1].Content != nil {
		t.Errorf("item attachment should have no payload, got %q", atts[1].Content)
	}
	if atts[1].ODataType != "#microsoft.graph.itemAttachment" || atts[1].Name != "fwd" {
		t.Errorf("second attachment = %+v", atts[1])
	}
}

func TestClient_ListAttachmentsRefusesForeignNextLink(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("bearer token sent to %s", r.Host)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer foreign.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":[{"@odata.type":"#microsoft.graph.fileAttachment","id":"1","name":"a.txt","contentBytes":"YQ=="}],"@odata.nextLink":"%s/steal?$skip=1"}`, foreign.URL)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, srv.URL, staticAuth("Bearer secret-token"))
	_, err := c.ListAttachments(context.Background(), "u@contoso.com", "AAMk1")
	if err == nil {
		t.Fatal("ListAttachments() followed a nextLink to another host")
	}
	if !strings.Contains(err.Error(), "refusing to send credentials") {
		t.Errorf("error = %v", err)
	}
	if foreignHits.Load() != 0 {
		t.Errorf("foreign host received %d requests", foreignHits.Load())
	}
}

func TestNewHTTPClient(t *testing.T) {
	if _, err := NewHTTPClient(""); err != nil {
		t.Errorf("NewHTTPClient(\"\") error = %v", err)
	}
	if _, err := NewHTTPClient("http://proxy.local:8080/%zz"); err == nil {
		t.Error("NewHTTPClient() accepted an unparsable proxy URL")
	}
}

func TestNewHTTPClient_RoutesThroughProxy(t *testing.T) {
	var gotHost, gotProxyAuth string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotProxyAuth = r.Header.Get("Proxy-Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer proxy.Close()

	hc, err := NewHTTPClient(strings.Replace(proxy.URL, "http://", "http://svc:pw@", 1))
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}
	c, err := NewClient("http://graph.test/v1.0", staticAuth("Bearer x"), WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := c.ListMessages(context.Background(), "u@contoso.com", "inbox", "<a@b>"); err != nil {
		t.Fatalf("ListMessages() through proxy error = %v", err)
	}
	if gotHost != "graph.test" {
		t.Errorf("proxy saw Host %q, want graph.test", gotHost)
	}
	if !strings.HasPrefix(gotProxyAuth, "Basic ") {
		t.Errorf("Proxy-Authorization = %q, want basic credentials from the proxy URL", gotProxyAuth)
	}
}
