// Package segment splits raw text into the chunks that BPE training and
// encoding operate on. Merges never cross a chunk boundary.
package segment

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dlclark/regexp2"
)

// Pattern is the pre-segmentation pattern (regexp2 / .NET syntax).
//
// Alternatives, left to right, first match wins:
//
//   - ` ?[\u0C80-\u0CE5\u0CF0-\u0CFF\u200C\u200D]+`: a Kannada word with an
//     optional leading space. Covers independent vowels, consonants, vowel
//     signs, virama and the ZWNJ/ZWJ conjunct controls. Kannada digits
//     (U+0CE6..U+0CEF) are left to the number rule.
//   - ` ?[\p{L}\p{M}]+`: a word in any other script.
//   - `\p{N}{1,3}`: digit groups of at most three.
//   - ` ?[^\s\p{L}\p{M}\p{N}]+[\r\n]*`: punctuation and symbols, with an
//     optional leading space and trailing newlines.
//   - `\s*[\r\n]+`, `\s+(?!\S)`, `\s+`: whitespace runs; the lookahead keeps
//     the last space of a run attached to the following word.
const Pattern = ` ?[\u0C80-\u0CE5\u0CF0-\u0CFF\u200C\u200D]+| ?[\p{L}\p{M}]+|\p{N}{1,3}| ?[^\s\p{L}\p{M}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+`

// PatternVersion identifies Pattern inside persisted vocabularies. It must be
// bumped whenever Pattern changes.
const PatternVersion = 1

// ErrBadPattern is returned when a pattern does not compile.
var ErrBadPattern = errors.New("invalid segmentation pattern")

// Segmenter splits text with a compiled pattern. It is immutable and safe for
// concurrent use.
type Segmenter struct {
	pattern string
	re      *regexp2.Regexp
}

// New compiles pattern into a Segmenter.
func New(pattern string) (*Segmenter, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPattern, err)
	}

	return &Segmenter{pattern: pattern, re: re}, nil
}

var (
	defaultOnce sync.Once
	defaultSeg  *Segmenter
)

// Default returns the shared Segmenter for Pattern.
func Default() *Segmenter {
	defaultOnce.Do(func() {
		s, err := New(Pattern)
		if err != nil {
			panic(fmt.Sprintf("segment: built-in pattern does not compile: %v", err))
		}
		defaultSeg = s
	})

	return defaultSeg
}

// Pattern returns the source pattern.
func (s *Segmenter) Pattern() string { return s.pattern }

// Segment splits text into ordered, non-empty chunks whose concatenation is
// exactly text. Text the pattern does not match is returned as chunks of its
// own, so no byte is ever dropped. Empty text yields no chunks.
func (s *Segmenter) Segment(text string) []string {
	if text == "" {
		return nil
	}

	// regexp2 reports match positions in runes. offsets maps a rune index to
	// the byte offset of that rune in text; invalid UTF-8 bytes count as one
	// rune each, both here and inside regexp2.
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))

	var chunks []string
	pos := 0

	m, err := s.re.FindStringMatch(text)
	for err == nil && m != nil {
		start := offsets[m.Index]
		end := offsets[m.Index+m.Length]
		if start > pos {
			chunks = append(chunks, text[pos:start])
		}
		if end > start {
			chunks = append(chunks, text[start:end])
			pos = end
		}
		m, err = s.re.FindNextMatch(m)
	}

	if pos < len(text) {
		chunks = append(chunks, text[pos:])
	}

	return chunks
}

// Segment splits text with the default Segmenter.
func Segment(text string) []string {
	return Default().Segment(text)
}
