// Package bpe implements a byte-level Byte Pair Encoding tokenizer for
// Kannada text: merge learning (Train), merge application (Encode), and a
// JSON vocabulary artifact (Save / Load).
//
// A Vocabulary is immutable once built and may be shared by any number of
// goroutines encoding concurrently.
package bpe

import (
	"fmt"

	"github.com/example/kannada-bpe/internal/segment"
	"go.uber.org/multierr"
)

// Pair is an ordered pair of adjacent token ids.
type Pair struct {
	Left  int
	Right int
}

func (p Pair) less(q Pair) bool {
	if p.Left != q.Left {
		return p.Left < q.Left
	}

	return p.Right < q.Right
}

// Merge is a learned rule: Left followed by Right becomes ID.
// ID is always BaseSize + rank.
type Merge struct {
	Left  int
	Right int
	ID    int
}

// Pair returns the pair the merge consumes.
func (m Merge) Pair() Pair { return Pair{Left: m.Left, Right: m.Right} }

// Rank returns the merge priority; lower ranks apply first.
func (m Merge) Rank() int { return m.ID - BaseSize }

// Vocabulary holds the token table and the ordered merge rules.
// Invariants:
//   - tokens[id] is the exact byte sequence of token id, for 0 <= id < Size().
//   - tokens[b] == []byte{b} for every base id b.
//   - merges[r].ID == BaseSize + r, and both operands of merges[r] are < merges[r].ID.
//   - ranks[merges[r].Pair()] == r.
type Vocabulary struct {
	tokens         [][]byte
	merges         []Merge
	ranks          map[Pair]int
	seg            *segment.Segmenter
	patternVersion int
}

// NewBase returns the vocabulary of the base alphabet alone with the built-in
// segmentation pattern.
func NewBase() *Vocabulary {
	v, err := newVocabulary(nil, segment.Default(), segment.PatternVersion)
	if err != nil {
		panic(fmt.Sprintf("bpe: base vocabulary: %v", err))
	}

	return v
}

// newVocabulary builds a Vocabulary from merge pairs in rank order. It is the
// single construction path for both training and loading, and it reports every
// forward reference or duplicate rule it finds.
func newVocabulary(pairs []Pair, seg *segment.Segmenter, patternVersion int) (*Vocabulary, error) {
	v := &Vocabulary{
		tokens:         baseTokens(BaseSize + len(pairs)),
		merges:         make([]Merge, 0, len(pairs)),
		ranks:          make(map[Pair]int, len(pairs)),
		seg:            seg,
		patternVersion: patternVersion,
	}

	var errs error
	for rank, p := range pairs {
		id := BaseSize + rank

		if p.Left < 0 || p.Left >= id || p.Right < 0 || p.Right >= id {
			errs = multierr.Append(errs, fmt.Errorf("merge %d (%d, %d) -> %d references an undefined token", rank, p.Left, p.Right, id))
			v.tokens = append(v.tokens, nil)
			continue
		}

		if prev, dup := v.ranks[p]; dup {
			errs = multierr.Append(errs, fmt.Errorf("merge %d (%d, %d) duplicates merge %d", rank, p.Left, p.Right, prev))
		} else {
			v.ranks[p] = rank
		}

		v.merges = append(v.merges, Merge{Left: p.Left, Right: p.Right, ID: id})
		v.tokens = append(v.tokens, concatBytes(v.tokens[p.Left], v.tokens[p.Right]))
	}

	if errs != nil {
		return nil, errs
	}

	return v, nil
}

// Size returns the number of token ids.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// BaseSize returns the number of base alphabet ids.
func (v *Vocabulary) BaseSize() int { return BaseSize }

// NumMerges returns the number of learned merges.
func (v *Vocabulary) NumMerges() int { return len(v.merges) }

// Merges returns a copy of the merge rules in rank order.
func (v *Vocabulary) Merges() []Merge { return append([]Merge(nil), v.merges...) }

// Rank returns the rank of the merge consuming p.
func (v *Vocabulary) Rank(p Pair) (int, bool) {
	r, ok := v.ranks[p]
	return r, ok
}

// TokenBytes returns the bytes of token id. The slice is a copy.
func (v *Vocabulary) TokenBytes(id int) ([]byte, bool) {
	if id < 0 || id >= len(v.tokens) {
		return nil, false
	}

	return append([]byte(nil), v.tokens[id]...), true
}

// TokenText returns the text of token id. Tokens that end inside a multi-byte
// character are returned as-is and are not valid UTF-8 on their own.
func (v *Vocabulary) TokenText(id int) (string, bool) {
	if id < 0 || id >= len(v.tokens) {
		return "", false
	}

	return string(v.tokens[id]), true
}

// Pattern returns the segmentation pattern the vocabulary was trained with.
func (v *Vocabulary) Pattern() string { return v.seg.Pattern() }

// PatternVersion returns the version of the built-in pattern the vocabulary
// was trained with, or 0 for a custom pattern.
func (v *Vocabulary) PatternVersion() int { return v.patternVersion }

// Segmenter returns the segmenter bound to the vocabulary.
func (v *Vocabulary) Segmenter() *segment.Segmenter { return v.seg }

// Equal reports whether both vocabularies assign the same ids, bytes and merge
// ranks and segment with the same pattern.
func (v *Vocabulary) Equal(o *Vocabulary) bool {
	if v == nil || o == nil {
		return v == o
	}

	if v.Pattern() != o.Pattern() || v.patternVersion != o.patternVersion {
		return false
	}

	if len(v.tokens) != len(o.tokens) || len(v.merges) != len(o.merges) {
		return false
	}

	for i, m := range v.merges {
		if o.merges[i] != m {
			return false
		}
	}

	for i := range v.tokens {
		if string(v.tokens[i]) != string(o.tokens[i]) {
			return false
		}
	}

	return true
}

// String summarizes the vocabulary for logs.
func (v *Vocabulary) String() string {
	return fmt.Sprintf("bpe.Vocabulary{size=%d merges=%d pattern_version=%d}", v.Size(), v.NumMerges(), v.patternVersion)
}

func concatBytes(a, b []byte) []byte {
	c := make([]byte, len(a)+len(b))
	copy(c, a)
	copy(c[len(a):], b)

	return c
}
