package corpus

import (
	"strings"
	"unicode/utf8"
)

// Stats summarizes a corpus.
type Stats struct {
	Bytes        int `json:"bytes"`
	Runes        int `json:"runes"`
	Lines        int `json:"lines"`
	KannadaRunes int `json:"kannada_runes"`
}

// KannadaShare returns the fraction of runes in the Kannada block.
func (s Stats) KannadaShare() float64 {
	if s.Runes == 0 {
		return 0
	}

	return float64(s.KannadaRunes) / float64(s.Runes)
}

// IsKannada reports whether r lies in the Kannada Unicode block (U+0C80..U+0CFF).
func IsKannada(r rune) bool { return r >= 0x0C80 && r <= 0x0CFF }

// Measure computes Stats for text. Invalid bytes count as one rune each.
func Measure(text string) Stats {
	st := Stats{
		Bytes: len(text),
		Runes: utf8.RuneCountInString(text),
	}

	if text != "" {
		st.Lines = strings.Count(text, "\n") + 1
		if strings.HasSuffix(text, "\n") {
			st.Lines--
		}
	}

	for _, r := range text {
		if IsKannada(r) {
			st.KannadaRunes++
		}
	}

	return st
}
