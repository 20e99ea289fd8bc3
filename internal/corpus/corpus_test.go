package corpus

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/example/kannada-bpe/internal/testutil"
)

func TestLoad_JoinsDocuments(t *testing.T) {
	a := testutil.WriteFile(t, "a.txt", "ನಮಸ್ಕಾರ")
	b := testutil.WriteFile(t, "b.txt", "ಕನ್ನಡ")

	got, err := Load(Options{Paths: []string{a, b}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if want := "ನಮಸ್ಕಾರ\n\nಕನ್ನಡ"; got != want {
		t.Errorf("Load = %q, want %q", got, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  error
	}{
		{"no paths", nil, ErrNoPaths},
		{"blank path", []string{" "}, ErrNoPaths},
		{"missing", []string{filepath.Join(t.TempDir(), "nope.txt")}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{Paths: tt.paths})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_NotFoundWrapsFS(t *testing.T) {
	_, err := Load(Options{Paths: []string{filepath.Join(t.TempDir(), "nope.txt")}})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestLoad_Newlines(t *testing.T) {
	path := testutil.WriteFile(t, "crlf.txt", "ಒಂದು\r\nಎರಡು\rಮೂರು")

	got, err := Load(Options{Paths: []string{path}, Newlines: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if want := "ಒಂದು\nಎರಡು\nಮೂರು"; got != want {
		t.Errorf("Load = %q, want %q", got, want)
	}
}

func TestLoad_NFC(t *testing.T) {
	// KA + vowel sign E + vowel sign UU composes to KA + vowel sign O.
	decomposed := "\u0c95\u0cc6\u0cc2"
	composed := "\u0c95\u0cca"

	path := testutil.WriteFile(t, "nfd.txt", decomposed)

	raw, err := Load(Options{Paths: []string{path}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if raw != decomposed {
		t.Errorf("without NFC: %q, want input unchanged", raw)
	}

	got, err := Load(Options{Paths: []string{path}, NFC: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != composed {
		t.Errorf("with NFC: %q, want %q", got, composed)
	}
}

func TestLoad_MaxDocs(t *testing.T) {
	path := testutil.WriteFile(t, "docs.txt", "ಒಂದು\n\nಎರಡು\n\nಮೂರು")

	tests := []struct {
		max  int
		want string
	}{
		{0, "ಒಂದು\n\nಎರಡು\n\nಮೂರು"},
		{1, "ಒಂದು"},
		{2, "ಒಂದು\n\nಎರಡು"},
		{5, "ಒಂದು\n\nಎರಡು\n\nಮೂರು"},
	}

	for _, tt := range tests {
		got, err := Load(Options{Paths: []string{path}, MaxDocs: tt.max})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got != tt.want {
			t.Errorf("MaxDocs=%d: %q, want %q", tt.max, got, tt.want)
		}
	}
}

func TestLoad_MaxBytesKeepsRunes(t *testing.T) {
	text := strings.Repeat("ಕನ್ನಡ", 10)
	path := testutil.WriteFile(t, "big.txt", text)

	for n := 1; n < 20; n++ {
		got, err := Load(Options{Paths: []string{path}, MaxBytes: n})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if len(got) > n {
			t.Errorf("MaxBytes=%d: got %d bytes", n, len(got))
		}
		if !utf8.ValidString(got) {
			t.Errorf("MaxBytes=%d: split a character: %q", n, got)
		}
		if !strings.HasPrefix(text, got) {
			t.Errorf("MaxBytes=%d: %q is not a prefix", n, got)
		}
		if n >= 3 && len(got) < n-2 {
			t.Errorf("MaxBytes=%d: cut too much (%d bytes)", n, len(got))
		}
	}
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		in   string
		want Stats
	}{
		{"", Stats{}},
		{"abc", Stats{Bytes: 3, Runes: 3, Lines: 1}},
		{"ಕನ್ನಡ\n", Stats{Bytes: 16, Runes: 6, Lines: 1, KannadaRunes: 5}},
		{"ಕ a\nb\n\n", Stats{Bytes: 9, Runes: 7, Lines: 3, KannadaRunes: 1}},
	}

	for _, tt := range tests {
		if got := Measure(tt.in); got != tt.want {
			t.Errorf("Measure(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestStats_KannadaShare(t *testing.T) {
	if got := (Stats{}).KannadaShare(); got != 0 {
		t.Errorf("empty share = %v", got)
	}

	if got := Measure("ಕa").KannadaShare(); got != 0.5 {
		t.Errorf("share = %v, want 0.5", got)
	}
}
