package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"msgraphextract/internal/common/logger"
	"msgraphextract/internal/common/security"
)

// Authenticator hands out bearer authorization values, asking its
// TokenSource for a new token only when the cached one has expired.
type Authenticator struct {
	source TokenSource
	out    io.Writer
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cached *Token
}

// NewAuthenticator wraps source. Status lines go to out, diagnostics to log;
// either may be nil.
func NewAuthenticator(source TokenSource, out io.Writer, log *slog.Logger) *Authenticator {
	return &Authenticator{
		source: source,
		out:    out,
		logger: log,
		now:    time.Now,
	}
}

// Token returns a valid token, reusing the cached one while its expiry is
// strictly in the future.
func (a *Authenticator) Token(ctx context.Context) (*Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && a.cached.ExpiresOn.After(a.now()) {
		logger.LogDebug(a.logger, "Reusing cached access token", "expiresOn", a.cached.ExpiresOn)
		return a.cached, nil
	}

	tok, err := a.source.Token(ctx)
	if err != nil {
		a.reportFailure(err)
		return nil, err
	}

	a.cached = tok
	logger.Success(a.out, "Authenticated to Microsoft365")
	logger.LogDebug(a.logger, "Access token issued",
		"token", security.MaskAccessToken(tok.AccessToken),
		"expiresOn", tok.ExpiresOn)
	return tok, nil
}

// AccessToken returns the raw bearer value.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Authorization returns the value for the Authorization request header.
func (a *Authenticator) Authorization(ctx context.Context) (string, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + tok.AccessToken, nil
}

func (a *Authenticator) reportFailure(err error) {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) && authErr.StatusCode > 0 {
		logger.Error(a.out, "Error authenticating to Microsoft365. Status: %d. Check your application ID, tenant ID, and application secret.", authErr.StatusCode)
	} else {
		logger.Error(a.out, "Error authenticating to Microsoft365: %v", err)
	}
	logger.LogError(a.logger, "Token request failed", "error", err)
}
