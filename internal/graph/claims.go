package graph

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims represents relevant claims from Microsoft Entra ID JWT tokens
type TokenClaims struct {
	AppDisplayName string   `json:"app_displayname"` // Application display name from Entra ID
	Roles          []string `json:"roles"`           // Assigned application roles (e.g., Mail.Read)
	jwt.RegisteredClaims
}

// mailReadRoles grant application access to message content.
var mailReadRoles = []string{"Mail.Read", "Mail.ReadWrite", "Mail.ReadBasic.All"}

// ParseTokenClaims decodes the claims of an access token without verifying
// its signature; the token was just issued to us by the identity service.
func ParseTokenClaims(accessToken string) (*TokenClaims, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(accessToken, &TokenClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return nil, fmt.Errorf("failed to extract claims from token")
	}
	return claims, nil
}

// CanReadMail reports whether the roles include an application permission
// that allows reading messages.
func (c *TokenClaims) CanReadMail() bool {
	for _, role := range c.Roles {
		if slices.Contains(mailReadRoles, role) {
			return true
		}
	}
	return false
}

// PrintTokenInfo writes a human-readable summary of tok to w.
func PrintTokenInfo(w io.Writer, tok *Token, now time.Time) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Token Information:")
	fmt.Fprintln(w, "------------------")
	fmt.Fprintf(w, "Expires at: %s\n", tok.ExpiresOn.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Valid for: %s\n", tok.ExpiresOn.Sub(now).Round(time.Second))
	fmt.Fprintf(w, "Token length: %d characters\n", len(tok.AccessToken))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "JWT Claims:")
	claims, err := ParseTokenClaims(tok.AccessToken)
	if err != nil {
		fmt.Fprintf(w, "  (Could not parse JWT claims: %v)\n", err)
		fmt.Fprintln(w)
		return
	}

	appName := claims.AppDisplayName
	if appName == "" {
		appName = "(not available)"
	}
	roles := "(none)"
	if len(claims.Roles) > 0 {
		roles = strings.Join(claims.Roles, ", ")
	}
	fmt.Fprintf(w, "  Application Name: %s\n", appName)
	fmt.Fprintf(w, "  Assigned Roles: %s\n", roles)
	fmt.Fprintln(w)
}
