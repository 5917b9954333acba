package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/common/ratelimit"
	"msgraphextract/internal/common/version"
)

// Message is a message resource as returned by Graph: an open field map.
// Numbers are kept as json.Number so they round-trip verbatim.
type Message map[string]any

// Attachment is one entry of a message's attachment collection.
// Content is nil for attachment types that carry no inline payload
// (item and reference attachments).
type Attachment struct {
	ODataType   string
	ID          string
	Name        string
	ContentType string
	Size        int64
	IsInline    bool
	Content     []byte
}

// Authorizer supplies the Authorization header value for each request.
type Authorizer interface {
	Authorization(ctx context.Context) (string, error)
}

var errorMapping = abstractions.ErrorMappings{
	"XXX": odataerrors.CreateODataErrorFromDiscriminatorValue,
}

// Client reads mailboxes through the Graph SDK.
type Client struct {
	service    *msgraphsdk.GraphServiceClient
	adapter    *msgraphsdk.GraphRequestAdapter
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for Graph requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter spaces requests with l.
func WithRateLimiter(l *ratelimit.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client rooted at baseURL (e.g. DefaultGraphURL).
// Requests outside baseURL's scheme and host are refused.
func NewClient(baseURL string, auth Authorizer, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid graph URL: %w", err)
	}

	c := &Client{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}

	next := c.httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc := *c.httpClient
	hc.Transport = &graphTransport{next: next, limiter: c.limiter, logger: c.logger}

	adapter, err := msgraphsdk.NewGraphRequestAdapterWithParseNodeFactoryAndSerializationWriterFactoryAndHttpClient(
		&bearerProvider{auth: auth, base: base}, nil, nil, &hc)
	if err != nil {
		return nil, fmt.Errorf("graph client initialization failed: %w", err)
	}
	adapter.SetBaseUrl(base.String())

	c.adapter = adapter
	c.service = msgraphsdk.NewGraphServiceClient(adapter)
	logger.LogDebug(c.logger, "Graph SDK client initialized", "baseURL", base.String())
	return c, nil
}

// ODataEquals builds an OData equality filter, doubling single quotes in
// the literal.
func ODataEquals(field, value string) string {
	return fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(value, "'", "''"))
}

// ListMessages returns the messages of the well-known folder folderID
// (e.g. "inbox") whose internetMessageId equals internetMessageID. An empty
// folderID searches the whole mailbox.
// The raw body is decoded so every property Graph returns is kept.
func (c *Client) ListMessages(ctx context.Context, user, folderID, internetMessageID string) ([]Message, error) {
	filter := ODataEquals("internetMessageId", internetMessageID)
	mailbox := c.service.Users().ByUserId(user)

	var info *abstractions.RequestInformation
	var err error
	if folderID == "" {
		info, err = mailbox.Messages().ToGetRequestInformation(ctx, &users.ItemMessagesRequestBuilderGetRequestConfiguration{
			QueryParameters: &users.ItemMessagesRequestBuilderGetQueryParameters{Filter: &filter},
		})
	} else {
		info, err = mailbox.MailFolders().ByMailFolderId(folderID).Messages().ToGetRequestInformation(ctx, &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{
			QueryParameters: &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{Filter: &filter},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	var raw []byte
	err = c.call(ctx, func(ctx context.Context) error {
		res, err := c.adapter.SendPrimitive(ctx, info, "[]byte", errorMapping)
		if err != nil {
			return err
		}
		raw, _ = res.([]byte)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var page struct {
		Value []Message `json:"value"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode graph response: %w", err)
	}
	return page.Value, nil
}

// ListAttachments returns every attachment of the message with the given
// service-assigned id, following @odata.nextLink.
func (c *Client) ListAttachments(ctx context.Context, user, messageID string) ([]Attachment, error) {
	var all []Attachment
	err := c.call(ctx, func(ctx context.Context) error {
		page, err := c.service.Users().ByUserId(user).Messages().ByMessageId(messageID).Attachments().Get(ctx, nil)
		if err != nil {
			return err
		}
		if page == nil {
			return nil
		}

		iter, err := msgraphcore.NewPageIterator[models.Attachmentable](page, c.adapter, models.CreateAttachmentCollectionResponseFromDiscriminatorValue)
		if err != nil {
			return err
		}
		return iter.Iterate(ctx, func(item models.Attachmentable) bool {
			all = append(all, newAttachment(item))
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func newAttachment(item models.Attachmentable) Attachment {
	att := Attachment{
		ODataType:   deref(item.GetOdataType()),
		ID:          deref(item.GetId()),
		Name:        deref(item.GetName()),
		ContentType: deref(item.GetContentType()),
	}
	if size := item.GetSize(); size != nil {
		att.Size = int64(*size)
	}
	if inline := item.GetIsInline(); inline != nil {
		att.IsInline = *inline
	}
	if file, ok := item.(models.FileAttachmentable); ok {
		att.Content = file.GetContentBytes()
	}
	return att
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// call runs one SDK operation and turns a failed HTTP response into a
// *StatusError. Other errors are returned wrapped.
func (c *Client) call(ctx context.Context, op func(ctx context.Context) error) error {
	failed := &failedResponse{}
	err := op(context.WithValue(ctx, failedResponseKey{}, failed))
	if err == nil {
		return nil
	}
	if failed.status != 0 {
		return newStatusError(failed, err)
	}
	return fmt.Errorf("graph request failed: %w", err)
}

// bearerProvider authenticates SDK requests with an Authorizer. It refuses
// URLs outside base so a nextLink never carries the token elsewhere.
type bearerProvider struct {
	auth Authorizer
	base *url.URL
}

func (p *bearerProvider) AuthenticateRequest(ctx context.Context, request *abstractions.RequestInformation, _ map[string]interface{}) error {
	if request == nil {
		return errors.New("request cannot be nil")
	}
	target, err := request.GetUri()
	if err != nil {
		return fmt.Errorf("failed to build request URL: %w", err)
	}
	if !strings.EqualFold(target.Scheme, p.base.Scheme) || !strings.EqualFold(target.Host, p.base.Host) {
		return fmt.Errorf("refusing to send credentials to %s://%s (graph URL is %s://%s)",
			target.Scheme, target.Host, p.base.Scheme, p.base.Host)
	}

	authz, err := p.auth.Authorization(ctx)
	if err != nil {
		return err
	}
	request.Headers.Add("Authorization", authz)
	return nil
}

type failedResponseKey struct{}

// failedResponse is the last non-2xx response seen during one client call.
type failedResponse struct {
	status     int
	retryAfter string
	body       []byte
}

// graphTransport paces and logs Graph requests and records failed
// responses for the call that issued them.
type graphTransport struct {
	next    http.RoundTripper
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func (t *graphTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req = req.Clone(ctx)
	req.Header.Set("User-Agent", version.UserAgent())

	logger.LogDebug(t.logger, "Calling Graph API", "method", req.Method, "url", req.URL.Redacted())
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	logger.LogDebug(t.logger, "Graph API response", "status", resp.StatusCode,
		"requestId", resp.Header.Get("request-id"))

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	if failed, ok := ctx.Value(failedResponseKey{}).(*failedResponse); ok {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		*failed = failedResponse{
			status:     resp.StatusCode,
			retryAfter: resp.Header.Get("Retry-After"),
			body:       body,
		}
	}
	return resp, nil
}

func newStatusError(failed *failedResponse, err error) *StatusError {
	statusErr := &StatusError{
		StatusCode: failed.status,
		RetryAfter: failed.retryAfter,
	}

	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) && odataErr.GetErrorEscaped() != nil {
		main := odataErr.GetErrorEscaped()
		statusErr.Code = deref(main.GetCode())
		statusErr.Message = deref(main.GetMessage())
		if statusErr.Code != "" {
			return statusErr
		}
	}

	var env odataError
	if json.Unmarshal(failed.body, &env) == nil && env.Error.Code != "" {
		statusErr.Code = env.Error.Code
		statusErr.Message = env.Error.Message
	} else if text := strings.TrimSpace(string(failed.body)); text != "" && statusErr.Message == "" {
		statusErr.Message = text
	}
	return statusErr
}

// NewHTTPClient returns the HTTP client shared by token and Graph requests,
// routed through proxyURL when it is set.
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport}, nil
}
