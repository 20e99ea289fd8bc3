// Package corpus reads training text from disk.
//
// Files are read as UTF-8, optionally normalized, and joined with a blank
// line between documents. The result is handed to bpe.Train unchanged.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DocumentSeparator separates documents in a joined corpus.
const DocumentSeparator = "\n\n"

var (
	// ErrNoPaths is returned when no corpus file is named.
	ErrNoPaths = errors.New("no corpus paths given")

	// ErrNotFound is returned when a named corpus file does not exist.
	ErrNotFound = errors.New("corpus file not found")
)

// Options controls Load.
type Options struct {
	Paths []string

	// NFC applies Unicode canonical composition to every file.
	NFC bool
	// Newlines rewrites CRLF and CR line endings to LF.
	Newlines bool

	// MaxDocs keeps at most this many blank-line separated documents; 0 keeps all.
	MaxDocs int
	// MaxBytes truncates the joined corpus to at most this many bytes without
	// splitting a UTF-8 sequence; 0 disables the cap.
	MaxBytes int
}

// Load reads opts.Paths in order and returns the joined corpus.
func Load(opts Options) (string, error) {
	if len(opts.Paths) == 0 {
		return "", ErrNoPaths
	}

	docs := make([]string, 0, len(opts.Paths))

	for _, path := range opts.Paths {
		if strings.TrimSpace(path) == "" {
			return "", fmt.Errorf("%w: empty path", ErrNoPaths)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
			}
			return "", fmt.Errorf("read corpus %q: %w", path, err)
		}

		text := string(data)
		if opts.Newlines {
			text = NormalizeNewlines(text)
		}
		if opts.NFC {
			text = NFC(text)
		}

		docs = append(docs, text)
	}

	text := strings.Join(docs, DocumentSeparator)

	if opts.MaxDocs > 0 {
		text = firstDocs(text, opts.MaxDocs)
	}
	if opts.MaxBytes > 0 {
		text = truncate(text, opts.MaxBytes)
	}

	return text, nil
}

// firstDocs keeps the first n documents of text.
func firstDocs(text string, n int) string {
	parts := strings.SplitN(text, DocumentSeparator, n+1)
	if len(parts) <= n {
		return text
	}

	return strings.Join(parts[:n], DocumentSeparator)
}

// truncate cuts text to at most n bytes, backing up to a rune boundary.
func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}

	cut := n
	for cut > 0 && cut > n-3 && !startsRune(text[cut]) {
		cut--
	}
	if !startsRune(text[cut]) {
		// Malformed input; keep the byte cut.
		cut = n
	}

	return text[:cut]
}

func startsRune(b byte) bool { return b&0xC0 != 0x80 }
