package bpe

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/kannada-bpe/internal/segment"
	"go.uber.org/multierr"
)

const (
	artifactFormat  = "kannada-bpe"
	artifactVersion = 1
)

// artifact is the on-disk JSON form of a Vocabulary. Merges are listed in rank
// order; the id of merges[r] is base_size + r. Tokens carry the exact bytes as
// hex and a readable rendering of them as text.
type artifact struct {
	Format         string       `json:"format"`
	Version        int          `json:"version"`
	Pattern        string       `json:"pattern"`
	PatternVersion int          `json:"pattern_version"`
	BaseSize       int          `json:"base_size"`
	VocabSize      int          `json:"vocab_size"`
	Merges         [][2]int     `json:"merges"`
	Tokens         []tokenEntry `json:"tokens"`
}

type tokenEntry struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Hex  string `json:"hex"`
}

// Marshal encodes v as an indented JSON artifact.
func Marshal(v *Vocabulary) ([]byte, error) {
	a := artifact{
		Format:         artifactFormat,
		Version:        artifactVersion,
		Pattern:        v.Pattern(),
		PatternVersion: v.patternVersion,
		BaseSize:       BaseSize,
		VocabSize:      v.Size(),
		Merges:         make([][2]int, len(v.merges)),
		Tokens:         make([]tokenEntry, len(v.tokens)),
	}

	for r, m := range v.merges {
		a.Merges[r] = [2]int{m.Left, m.Right}
	}

	for id, b := range v.tokens {
		a.Tokens[id] = tokenEntry{
			ID:   id,
			Text: strings.ToValidUTF8(string(b), "\uFFFD"),
			Hex:  hex.EncodeToString(b),
		}
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode vocabulary: %w", err)
	}

	return append(data, '\n'), nil
}

// Unmarshal decodes and validates a JSON artifact. Every problem is wrapped in
// ErrInvalidArtifact; all structural violations are reported together.
func Unmarshal(data []byte) (*Vocabulary, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	if a.Format != artifactFormat {
		return nil, fmt.Errorf("%w: format %q, want %q", ErrInvalidArtifact, a.Format, artifactFormat)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidArtifact, a.Version)
	}
	if a.BaseSize != BaseSize {
		return nil, fmt.Errorf("%w: base_size %d, want %d", ErrInvalidArtifact, a.BaseSize, BaseSize)
	}

	seg, err := segment.New(a.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	if a.PatternVersion != 0 && (a.PatternVersion != segment.PatternVersion || a.Pattern != segment.Pattern) {
		return nil, fmt.Errorf("%w: pattern_version %d does not match the built-in pattern (version %d)",
			ErrInvalidArtifact, a.PatternVersion, segment.PatternVersion)
	}

	pairs := make([]Pair, len(a.Merges))
	for r, m := range a.Merges {
		pairs[r] = Pair{Left: m[0], Right: m[1]}
	}

	v, err := newVocabulary(pairs, seg, a.PatternVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	if err := checkTokens(v, a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	return v, nil
}

// checkTokens verifies that the token table lists ids 0..size-1 in order and
// that each token's bytes agree with what the merges derive.
func checkTokens(v *Vocabulary, a artifact) error {
	var errs error

	if a.VocabSize != v.Size() {
		errs = multierr.Append(errs, fmt.Errorf("vocab_size %d, but base_size + merges = %d", a.VocabSize, v.Size()))
	}
	if len(a.Tokens) != v.Size() {
		errs = multierr.Append(errs, fmt.Errorf("%d tokens listed, want %d", len(a.Tokens), v.Size()))
	}

	for i, t := range a.Tokens {
		if t.ID != i {
			errs = multierr.Append(errs, fmt.Errorf("token %d has id %d: ids must be contiguous and ordered", i, t.ID))
			continue
		}
		if i >= v.Size() {
			continue
		}

		b, err := hex.DecodeString(t.Hex)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("token %d: bad hex: %w", i, err))
			continue
		}
		if string(b) != string(v.tokens[i]) {
			errs = multierr.Append(errs, fmt.Errorf("token %d: bytes %x disagree with merges (%x)", i, b, v.tokens[i]))
		}
	}

	return errs
}

// Save writes v to path. The artifact is written to a temporary file in the
// same directory and renamed into place.
func Save(v *Vocabulary, path string) error {
	if path == "" {
		return errors.New("save vocabulary: empty path")
	}

	data, err := Marshal(v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create vocabulary dir %q: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".vocab-*.json")
	if err != nil {
		return fmt.Errorf("create temp vocabulary file: %w", err)
	}
	tmp := f.Name()

	defer func() { _ = os.Remove(tmp) }() // no-op after a successful rename

	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return fmt.Errorf("chmod vocabulary temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vocabulary: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close vocabulary temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename vocabulary into place: %w", err)
	}

	return nil
}

// Load reads a vocabulary saved by Save. A missing file yields an error
// matching both ErrArtifactNotFound and fs.ErrNotExist; anything unreadable or
// inconsistent yields ErrInvalidArtifact.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load vocabulary %q: %w: %w", path, ErrArtifactNotFound, err)
		}
		return nil, fmt.Errorf("load vocabulary %q: %w", path, err)
	}

	v, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary %q: %w", path, err)
	}

	return v, nil
}
