// Package doctor provides preflight checks for a vocabulary artifact.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/example/kannada-bpe/internal/segment"
	"go.uber.org/multierr"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// DefaultSample is round-tripped when Config.Sample is empty.
const DefaultSample = "ನಮಸ್ಕಾರ, ಇದು ಕನ್ನಡ ಟೋಕನೈಜರ್ ಆಗಿದೆ"

// LoadFunc loads a vocabulary artifact. bpe.Load is the default.
type LoadFunc func(path string) (*bpe.Vocabulary, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// VocabPath is the vocabulary artifact to check.
	VocabPath string
	// Load overrides bpe.Load.
	Load LoadFunc
	// Sample is the text used for the round-trip check.
	Sample string
	// CorpusFiles is the list of corpus paths to verify on disk.
	CorpusFiles []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
	errs     error
	// Vocab is the loaded vocabulary, nil if loading failed.
	Vocab *bpe.Vocabulary
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.fail(errors.New(msg)) }

// Err combines every failure into one error, nil when all checks passed.
// Sentinels such as bpe.ErrArtifactNotFound stay visible to errors.Is.
func (r *Result) Err() error { return r.errs }

func (r *Result) fail(err error) {
	r.failures = append(r.failures, err.Error())
	r.errs = multierr.Append(r.errs, err)
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	load := cfg.Load
	if load == nil {
		load = bpe.Load
	}
	sample := cfg.Sample
	if sample == "" {
		sample = DefaultSample
	}

	// ---- artifact on disk ---------------------------------------------------
	if _, err := os.Stat(cfg.VocabPath); err != nil {
		res.fail(fmt.Errorf("vocabulary %q: %w: %w", cfg.VocabPath, bpe.ErrArtifactNotFound, err))
		fmt.Fprintf(w, "%s vocabulary file %s: not found (run `knbpe train` first)\n", FailMark, cfg.VocabPath)
	} else {
		fmt.Fprintf(w, "%s vocabulary file: %s\n", PassMark, cfg.VocabPath)

		// ---- artifact loads -------------------------------------------------
		v, err := load(cfg.VocabPath)
		if err != nil {
			res.fail(fmt.Errorf("vocabulary load: %w", err))
			fmt.Fprintf(w, "%s vocabulary load: %v\n", FailMark, err)
		} else {
			res.Vocab = v
			fmt.Fprintf(w, "%s vocabulary load: %d tokens, %d merges\n", PassMark, v.Size(), v.NumMerges())
			checkPattern(&res, v, w)
			checkRoundTrip(&res, v, sample, w)
		}
	}

	// ---- corpus files -------------------------------------------------------
	for _, path := range cfg.CorpusFiles {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Errorf("corpus file %q: %w", path, err))
			fmt.Fprintf(w, "%s corpus file %s: not found\n", FailMark, path)
		} else {
			fmt.Fprintf(w, "%s corpus file: %s\n", PassMark, path)
		}
	}

	return res
}

func checkPattern(res *Result, v *bpe.Vocabulary, w io.Writer) {
	switch pv := v.PatternVersion(); {
	case pv == 0:
		fmt.Fprintf(w, "%s segmentation pattern: custom\n", PassMark)
	case pv == segment.PatternVersion && v.Pattern() == segment.Pattern:
		fmt.Fprintf(w, "%s segmentation pattern: version %d\n", PassMark, pv)
	default:
		res.fail(fmt.Errorf("segmentation pattern: version %d, built-in is %d", pv, segment.PatternVersion))
		fmt.Fprintf(w, "%s segmentation pattern: version %d, built-in is %d\n", FailMark, pv, segment.PatternVersion)
	}
}

func checkRoundTrip(res *Result, v *bpe.Vocabulary, sample string, w io.Writer) {
	ids := v.Encode(sample)

	got, err := v.Decode(ids)
	if err != nil {
		res.fail(fmt.Errorf("round trip: %w", err))
		fmt.Fprintf(w, "%s round trip: %v\n", FailMark, err)
		return
	}
	if got != sample {
		res.fail(fmt.Errorf("round trip: decoded %q, want %q", got, sample))
		fmt.Fprintf(w, "%s round trip: decoded text differs\n", FailMark)
		return
	}

	fmt.Fprintf(w, "%s round trip: %d bytes -> %d tokens\n", PassMark, len(sample), len(ids))
}
