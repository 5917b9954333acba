package extract

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"msgraphextract/internal/common/logger"
)

// maxLineBytes bounds a single identifier line.
const maxLineBytes = 1 << 20

// ReadIdentifiers reads one identifier per line, trimming whitespace and
// skipping blank lines. Duplicates are kept.
func ReadIdentifiers(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var ids []string
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// LoadIdentifiers collects the identifiers to process from, in order of
// precedence, a single messageID, an idsFile, or stdin. It returns an
// *InputError when none are supplied.
func LoadIdentifiers(messageID, idsFile string, stdin io.Reader, out io.Writer) ([]string, error) {
	switch {
	case messageID != "":
		id := strings.TrimSpace(messageID)
		if id == "" {
			return nil, &InputError{Msg: "No valid Message IDs were provided."}
		}
		return []string{id}, nil

	case idsFile != "":
		f, err := os.Open(idsFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &InputError{Msg: fmt.Sprintf("Message IDs file not found at %s.", idsFile)}
			}
			return nil, &InputError{Msg: "Error reading Message IDs file", Err: err}
		}
		defer f.Close()

		ids, err := ReadIdentifiers(f)
		if err != nil {
			return nil, &InputError{Msg: "Error reading Message IDs file", Err: err}
		}
		if len(ids) == 0 {
			return nil, &InputError{Msg: fmt.Sprintf("No Message IDs found in %s.", idsFile)}
		}
		logger.Info(out, "Read %d message ID(s) from %s.", len(ids), idsFile)
		return ids, nil

	default:
		if stdin == nil {
			return nil, &InputError{Msg: "No Message IDs provided via standard input."}
		}
		logger.Info(out, "Reading Message IDs from standard input (stdin)...")
		ids, err := ReadIdentifiers(stdin)
		if err != nil {
			return nil, &InputError{Msg: "Error reading from stdin", Err: err}
		}
		if len(ids) == 0 {
			return nil, &InputError{Msg: "No Message IDs provided via standard input."}
		}
		logger.Info(out, "Read %d message ID(s) from stdin.", len(ids))
		return ids, nil
	}
}
