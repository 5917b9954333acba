package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
)

// invalidNameChars are replaced with "-" in directory and file names.
var invalidNameChars = regexp.MustCompile(`[/\\?%*:|"<>\x7F\x00-\x1F]`)

// maxNameBytes keeps generated names below common 255-byte limits once
// the " - <uuid>" suffix or "Attachment - " prefix is added.
const maxNameBytes = 200

// SanitizeName makes s safe to use as a single path element.
func SanitizeName(s string) string {
	s = invalidNameChars.ReplaceAllString(s, "-")
	if len(s) <= maxNameBytes {
		return s
	}
	cut := maxNameBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// CreateExportDir creates "<parent>/<sanitized subject> - <uuid>". The
// directory must not already exist.
func CreateExportDir(parent, subject string) (string, error) {
	dir := filepath.Join(parent, fmt.Sprintf("%s - %s", SanitizeName(subject), uuid.NewString()))
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return dir, nil
}
