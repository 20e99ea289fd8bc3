package bpe

import "fmt"

// Chunk is one segment of the input together with its token ids.
type Chunk struct {
	Text string `json:"text"`
	IDs  []int  `json:"ids"`
}

// EncodeChunk encodes a single chunk without segmenting it first.
//
// The lowest-ranked merge present in the working sequence is applied at every
// non-overlapping position, left to right, and the scan restarts; encoding
// stops when no adjacent pair has a merge. Merges learned earlier therefore
// always win, as they did during training.
func (v *Vocabulary) EncodeChunk(chunk string) []int {
	ids := BaseIDs(chunk)

	for len(ids) >= 2 {
		bestRank := -1
		var best Pair

		for i := 0; i+1 < len(ids); i++ {
			p := Pair{Left: ids[i], Right: ids[i+1]}
			if r, ok := v.ranks[p]; ok && (bestRank < 0 || r < bestRank) {
				bestRank = r
				best = p
			}
		}

		if bestRank < 0 {
			break
		}

		ids = replacePair(ids, best, BaseSize+bestRank)
	}

	return ids
}

// Encode segments text with the vocabulary's pattern and encodes every chunk.
func (v *Vocabulary) Encode(text string) []int {
	var out []int
	for _, c := range v.seg.Segment(text) {
		out = append(out, v.EncodeChunk(c)...)
	}

	return out
}

// EncodeChunks is Encode keeping chunk boundaries, for callers that display
// per-chunk or per-token spans.
func (v *Vocabulary) EncodeChunks(text string) []Chunk {
	parts := v.seg.Segment(text)

	chunks := make([]Chunk, len(parts))
	for i, c := range parts {
		chunks[i] = Chunk{Text: c, IDs: v.EncodeChunk(c)}
	}

	return chunks
}

// DecodeBytes concatenates the bytes of every id.
func (v *Vocabulary) DecodeBytes(ids []int) ([]byte, error) {
	total := 0
	for i, id := range ids {
		if id < 0 || id >= len(v.tokens) {
			return nil, fmt.Errorf("%w: %d at position %d (vocabulary size %d)", ErrUnknownToken, id, i, len(v.tokens))
		}
		total += len(v.tokens[id])
	}

	out := make([]byte, 0, total)
	for _, id := range ids {
		out = append(out, v.tokens[id]...)
	}

	return out, nil
}

// Decode returns the text for ids. Decode(Encode(x)) == x for every x.
func (v *Vocabulary) Decode(ids []int) (string, error) {
	b, err := v.DecodeBytes(ids)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// replacePair rewrites ids in place, replacing every non-overlapping
// occurrence of p, scanning left to right, with id.
func replacePair(ids []int, p Pair, id int) []int {
	w := 0
	for r := 0; r < len(ids); {
		if r+1 < len(ids) && ids[r] == p.Left && ids[r+1] == p.Right {
			ids[w] = id
			r += 2
		} else {
			ids[w] = ids[r]
			r++
		}
		w++
	}

	return ids[:w]
}

func containsPair(ids []int, p Pair) bool {
	for i := 0; i+1 < len(ids); i++ {
		if ids[i] == p.Left && ids[i+1] == p.Right {
			return true
		}
	}

	return false
}
