package graph

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"software.sslmate.com/src/go-pkcs12"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/common/security"
)

const (
	// DefaultAuthority is the global Entra ID login host.
	DefaultAuthority = "https://login.microsoftonline.com/"
	// DefaultGraphURL is the Graph v1.0 REST root.
	DefaultGraphURL = "https://graph.microsoft.com/v1.0/"
)

// Credentials identify the application to the tenant. Exactly one of
// ClientSecret or PfxPath is used.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	PfxPath      string
	PfxPassword  string
}

// Method names the authentication method the credentials select.
func (c Credentials) Method() string {
	if c.ClientSecret != "" {
		return "client secret"
	}
	if c.PfxPath != "" {
		return "certificate"
	}
	return "none"
}

// Token is a bearer token and the instant it stops being valid.
type Token struct {
	AccessToken string
	ExpiresOn   time.Time
}

// TokenSource issues new tokens. Implementations do not cache.
type TokenSource interface {
	Token(ctx context.Context) (*Token, error)
}

// DefaultScope derives the ".default" application scope from a Graph base
// URL, e.g. https://graph.microsoft.com/v1.0/ -> https://graph.microsoft.com/.default.
func DefaultScope(graphURL string) (string, error) {
	u, err := url.Parse(graphURL)
	if err != nil {
		return "", fmt.Errorf("invalid graph URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid graph URL %q: scheme and host are required", graphURL)
	}
	return u.Scheme + "://" + u.Host + "/.default", nil
}

// TokenURL returns the v2.0 token endpoint of tenant under authority.
func TokenURL(authority, tenantID string) string {
	return strings.TrimRight(authority, "/") + "/" + url.PathEscape(tenantID) + "/oauth2/v2.0/token"
}

// NewTokenSource picks the token source matching the credentials.
func NewTokenSource(creds Credentials, authority, scope string, httpClient *http.Client, log *slog.Logger) (TokenSource, error) {
	logger.LogDebug(log, "Setting up token source",
		"method", creds.Method(),
		"tenantID", security.MaskGUID(creds.TenantID),
		"clientID", security.MaskGUID(creds.ClientID),
		"scope", scope)

	switch {
	case creds.ClientSecret != "":
		logger.LogDebug(log, "Authentication method: Client Secret", "secret", security.MaskSecret(creds.ClientSecret))
		return NewSecretSource(creds, authority, scope, httpClient), nil
	case creds.PfxPath != "":
		logger.LogDebug(log, "Authentication method: PFX Certificate File",
			"path", creds.PfxPath,
			"password", security.MaskPassword(creds.PfxPassword))
		return NewCertificateSource(creds, authority, scope, httpClient)
	default:
		return nil, fmt.Errorf("no valid authentication method provided (use --app-secret or --pfx)")
	}
}

// SecretSource performs the OAuth2 client-credentials grant with a client
// secret posted in the form body.
type SecretSource struct {
	config     clientcredentials.Config
	httpClient *http.Client
}

func NewSecretSource(creds Credentials, authority, scope string, httpClient *http.Client) *SecretSource {
	return &SecretSource{
		config: clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     TokenURL(authority, creds.TenantID),
			Scopes:       []string{scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

func (s *SecretSource) Token(ctx context.Context) (*Token, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	tok, err := s.config.Token(ctx)
	if err != nil {
		authErr := &AuthenticationError{Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}
		return nil, authErr
	}

	return &Token{AccessToken: tok.AccessToken, ExpiresOn: tok.Expiry}, nil
}

// CertificateSource obtains tokens with a certificate loaded from a PFX
// file, through azidentity.
type CertificateSource struct {
	cred  azcore.TokenCredential
	scope string
}

func NewCertificateSource(creds Credentials, authority, scope string, httpClient *http.Client) (*CertificateSource, error) {
	pfxData, err := os.ReadFile(creds.PfxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PFX file: %w", err)
	}

	certs, key, err := LoadCertificate(pfxData, creds.PfxPassword)
	if err != nil {
		return nil, err
	}

	opts := &azidentity.ClientCertificateCredentialOptions{
		ClientOptions: azcore.ClientOptions{
			Cloud: cloud.Configuration{ActiveDirectoryAuthorityHost: authority},
			// One attempt only; a failed token request is fatal.
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
		SendCertificateChain: true,
	}
	if httpClient != nil {
		opts.ClientOptions.Transport = httpClient
	}

	cred, err := azidentity.NewClientCertificateCredential(creds.TenantID, creds.ClientID, certs, key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate credential: %w", err)
	}
	return &CertificateSource{cred: cred, scope: scope}, nil
}

func (s *CertificateSource) Token(ctx context.Context) (*Token, error) {
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{s.scope}})
	if err != nil {
		authErr := &AuthenticationError{Err: err}
		var failed *azidentity.AuthenticationFailedError
		if errors.As(err, &failed) && failed.RawResponse != nil {
			authErr.StatusCode = failed.RawResponse.StatusCode
		}
		return nil, authErr
	}
	return &Token{AccessToken: tok.Token, ExpiresOn: tok.ExpiresOn}, nil
}

// LoadCertificate decodes a PFX bundle into the leaf-first certificate
// chain and its private key.
func LoadCertificate(pfxData []byte, password string) ([]*x509.Certificate, crypto.PrivateKey, error) {
	key, cert, caCerts, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode PFX: %w", err)
	}

	privKey, ok := key.(crypto.PrivateKey)
	if !ok || privKey == nil {
		return nil, nil, fmt.Errorf("decoded key is not a valid crypto.PrivateKey")
	}

	certs := []*x509.Certificate{cert}
	certs = append(certs, caCerts...)
	return certs, privKey, nil
}
