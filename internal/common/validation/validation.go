package validation

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// MaxMessageIDLength is the longest Internet Message-ID accepted. RFC 5322
// caps a header line at 998 characters.
const MaxMessageIDLength = 998

// ValidateEmail performs basic email format validation.
// Checks for the presence of @ and validates the local and domain parts.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email format: %s (missing @)", email)
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateGUID validates that a string matches standard GUID format (8-4-4-4-12).
// Example: 12345678-1234-1234-1234-123456789012
func ValidateGUID(guid, fieldName string) error {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if len(guid) != 36 {
		return fmt.Errorf("%s should be a GUID (36 characters, format: 12345678-1234-1234-1234-123456789012)", fieldName)
	}
	if guid[8] != '-' || guid[13] != '-' || guid[18] != '-' || guid[23] != '-' {
		return fmt.Errorf("%s has invalid GUID format (dashes at wrong positions)", fieldName)
	}
	for i, ch := range guid {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			continue
		}
		if !isHex(ch) {
			return fmt.Errorf("%s has invalid GUID format (non-hex character %q)", fieldName, ch)
		}
	}
	return nil
}

func isHex(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// ValidateTenantID accepts a directory GUID or a verified domain name
// such as contoso.onmicrosoft.com.
func ValidateTenantID(tenant string) error {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if ValidateGUID(tenant, "tenant ID") == nil {
		return nil
	}
	if err := ValidateHostname(tenant); err != nil || !strings.Contains(tenant, ".") || net.ParseIP(tenant) != nil {
		return fmt.Errorf("tenant ID should be a GUID or a domain name (got %q)", tenant)
	}
	return nil
}

// ValidateIdentity accepts the target mailbox as a user principal name /
// SMTP address or as a user object GUID.
func ValidateIdentity(identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return fmt.Errorf("identity cannot be empty")
	}
	if ValidateGUID(identity, "identity") == nil {
		return nil
	}
	if err := ValidateEmail(identity); err != nil {
		return fmt.Errorf("identity should be an email address or a user GUID: %w", err)
	}
	return nil
}

// ValidateMessageID checks an Internet Message-ID before it is embedded in
// a query filter.
func ValidateMessageID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("message ID cannot be empty")
	}
	if len(id) > MaxMessageIDLength {
		return fmt.Errorf("message ID too long (%d characters, max %d)", len(id), MaxMessageIDLength)
	}
	for _, ch := range id {
		if unicode.IsControl(ch) {
			return fmt.Errorf("message ID contains control character %U", ch)
		}
	}
	return nil
}

// ValidateFilePath validates and sanitizes a file path for security and usability.
// Checks for path traversal attempts, verifies file exists and is accessible.
func ValidateFilePath(path, fieldName string) error {
	if path == "" {
		return nil // Empty is allowed for optional fields
	}

	cleanPath := filepath.Clean(path)

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("%s: invalid path: %w", fieldName, err)
	}

	// Relative paths must stay inside the working directory tree.
	if !filepath.IsAbs(path) && strings.Contains(cleanPath, "..") {
		return fmt.Errorf("%s: path contains directory traversal (..) which is not allowed", fieldName)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: file not found: %s", fieldName, path)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("%s: permission denied: %s", fieldName, path)
		}
		return fmt.Errorf("%s: cannot access file: %w", fieldName, err)
	}

	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file (is it a directory?): %s", fieldName, path)
	}

	return nil
}

// ValidateOutputDir checks that an export directory is either missing (it
// will be created) or an existing directory.
func ValidateOutputDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("output directory: cannot access %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output directory: %s exists and is not a directory", path)
	}
	return nil
}

// ValidateHostname validates a hostname or IP address.
// Accepts DNS names, IPv4 addresses, and IPv6 addresses.
func ValidateHostname(hostname string) error {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}

	if net.ParseIP(hostname) != nil {
		return nil
	}

	if len(hostname) > 253 {
		return fmt.Errorf("hostname too long (max 253 characters)")
	}

	for _, ch := range hostname {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') || ch == '.' || ch == '-') {
			return fmt.Errorf("hostname contains invalid character: %c", ch)
		}
	}

	if strings.HasPrefix(hostname, "-") || strings.HasSuffix(hostname, "-") ||
		strings.HasPrefix(hostname, ".") || strings.HasSuffix(hostname, ".") {
		return fmt.Errorf("hostname cannot start or end with hyphen or dot")
	}

	return nil
}

// ValidateProxyURL validates an outbound proxy URL. Empty means no proxy.
// Supported schemes are http, https and socks5.
func ValidateProxyURL(proxyURL string) error {
	if proxyURL == "" {
		return nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL format: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https", "socks5":
	default:
		return fmt.Errorf("unsupported proxy scheme %q (supported: http, https, socks5)", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("proxy URL must include hostname")
	}
	if err := ValidateHostname(host); err != nil {
		return fmt.Errorf("invalid proxy hostname: %w", err)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid proxy port %q (must be between 1 and 65535)", p)
		}
	}

	if u.User != nil && u.User.Username() == "" {
		return fmt.Errorf("proxy URL has empty username")
	}

	return nil
}

// ValidateEndpointURL validates an absolute http(s) base URL such as the
// identity authority or the Graph root.
func ValidateEndpointURL(raw, fieldName string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid URL: %w", fieldName, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s: scheme must be https (got %q)", fieldName, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%s: URL must include hostname", fieldName)
	}
	return nil
}
