// Package visualize turns an encoding into colored token spans for display.
package visualize

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/example/kannada-bpe/internal/bpe"
)

// Palette holds the span background colors. Identical token ids share a
// color; colors are handed out in order of first appearance and wrap around.
var Palette = []string{
	"#FFB3BA", "#FFDFBA", "#FFFFBA", "#BAFFC9", "#BAE1FF",
	"#FFB3E6", "#E6B3FF", "#FFE6B3", "#B3FFE6", "#B3E6FF",
	"#FFD1DC", "#FFE4B5", "#E6FFB3", "#B3FFF0", "#D1B3FF",
	"#FFCCE6", "#FFCCB3", "#FFFFCC", "#CCFFE6", "#CCE6FF",
}

// TextLookup resolves a token id to its text. *bpe.Vocabulary implements it.
type TextLookup interface {
	TokenText(id int) (string, bool)
}

// Span is one token in display order.
type Span struct {
	Index int    `json:"index"`
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Hex   string `json:"hex"`
	Color string `json:"color"`
	Chunk int    `json:"chunk"`
	// Partial marks tokens whose bytes are not valid UTF-8 on their own.
	Partial bool `json:"partial,omitempty"`
}

// Display is the full visualization of one input.
type Display struct {
	Tokens []Span `json:"tokens"`
	Total  int    `json:"total"`
	Unique int    `json:"unique"`
}

// Build lays out the tokens of chunks in order. Ids unknown to lookup are
// shown with empty text.
func Build(chunks []bpe.Chunk, lookup TextLookup) Display {
	colors := make(map[int]string)
	d := Display{Tokens: []Span{}}

	for ci, c := range chunks {
		for _, id := range c.IDs {
			color, ok := colors[id]
			if !ok {
				color = Palette[len(colors)%len(Palette)]
				colors[id] = color
			}

			text, _ := lookup.TokenText(id)
			d.Tokens = append(d.Tokens, Span{
				Index:   len(d.Tokens),
				ID:      id,
				Text:    strings.ToValidUTF8(text, "\uFFFD"),
				Hex:     hex.EncodeToString([]byte(text)),
				Color:   color,
				Chunk:   ci,
				Partial: !utf8.ValidString(text),
			})
		}
	}

	d.Total = len(d.Tokens)
	d.Unique = len(colors)

	return d
}

// IDs returns the token ids in display order.
func (d Display) IDs() []int {
	ids := make([]int, len(d.Tokens))
	for i, s := range d.Tokens {
		ids[i] = s.ID
	}

	return ids
}

// FormatTable writes one line per token to w.
func FormatTable(d Display, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-6s  %-6s  %-6s  %-8s  %s\n", "Index", "Chunk", "ID", "Color", "Token")
	fmt.Fprintln(sb, strings.Repeat("-", 48))

	for _, s := range d.Tokens {
		fmt.Fprintf(sb, "%-6d  %-6d  %-6d  %-8s  %s\n", s.Index, s.Chunk, s.ID, s.Color, strconv.Quote(s.Text))
	}

	fmt.Fprintln(sb, strings.Repeat("-", 48))
	fmt.Fprintf(sb, "%d tokens, %d unique\n", d.Total, d.Unique)

	fmt.Fprint(w, sb.String())
}
