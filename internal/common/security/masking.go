// Package security masks credentials and identifiers before they reach
// diagnostic output.
package security

import "strings"

// keepEdges shows the first head and last tail bytes around "****".
// Values no longer than head+tail are fully masked.
func keepEdges(s string, head, tail int) string {
	if len(s) <= head+tail {
		return "****"
	}
	return s[:head] + "****" + s[len(s)-tail:]
}

// MaskPassword masks a password such as a PFX passphrase.
// Empty passwords return empty string.
func MaskPassword(password string) string {
	if password == "" {
		return ""
	}
	return keepEdges(password, 2, 2)
}

// MaskAccessToken masks a bearer token.
// Shows first 8 and last 4 characters with ... in between for long tokens.
// For shorter tokens, shows half on each side.
func MaskAccessToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 16 {
		return token[:len(token)/2] + "..." + token[len(token)/2:]
	}
	return token[:8] + "..." + token[len(token)-4:]
}

// MaskSecret masks an application client secret, keeping the first four
// characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}

// MaskGUID keeps the first 8 characters of a tenant, client or object id.
func MaskGUID(guid string) string {
	if len(guid) <= 8 {
		return guid + "****"
	}
	return guid[:8] + "****"
}

// MaskEmail masks an email address for safe logging.
// Example: "user@example.com" becomes "us****@ex****"
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.IndexByte(email, '@')
	if at == -1 {
		return keepEdges(email, 2, 2)
	}

	maskPart := func(part string) string {
		if len(part) > 2 {
			return part[:2] + "****"
		}
		return "****"
	}
	return maskPart(email[:at]) + "@" + maskPart(email[at+1:])
}

// MaskIdentity masks a mailbox identity given either as a UPN or a GUID.
func MaskIdentity(identity string) string {
	if strings.Contains(identity, "@") {
		return MaskEmail(identity)
	}
	return MaskGUID(identity)
}
