// Package bench provides benchmarking primitives for the knbpe bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and token counts for a single encode run.
type RunResult struct {
	Index    int
	Cold     bool // true for the first run (cold-start)
	Duration time.Duration
	Tokens   int
	Bytes    int
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Durations extracts the run durations.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}
	return out
}

// ---------------------------------------------------------------------------
// Running
// ---------------------------------------------------------------------------

// Encoder is the part of a vocabulary the benchmark exercises.
type Encoder interface {
	Encode(text string) []int
}

// Run encodes text runs times. ctx is checked between runs; on cancellation
// the completed runs are returned with ctx.Err().
func Run(ctx context.Context, enc Encoder, text string, runs int) ([]RunResult, error) {
	if runs < 1 {
		return nil, errors.New("runs must be at least 1")
	}

	results := make([]RunResult, 0, runs)

	for i := range runs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		start := time.Now()
		ids := enc.Encode(text)
		dur := time.Since(start)

		results = append(results, RunResult{
			Index:    i,
			Cold:     i == 0,
			Duration: dur,
			Tokens:   len(ids),
			Bytes:    len(text),
		})
	}

	return results, nil
}

// ---------------------------------------------------------------------------
// Throughput helpers
// ---------------------------------------------------------------------------

// TokensPerSecond returns tokens / d.
// Returns 0 if d is zero to avoid division by zero.
func TokensPerSecond(tokens int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(tokens) / d.Seconds()
}

// CompressionRatio returns bytes per token, 0 when there are no tokens.
func CompressionRatio(bytes, tokens int) float64 {
	if tokens <= 0 {
		return 0
	}
	return float64(bytes) / float64(tokens)
}

// MeanTokensPerSecond averages throughput over the warm runs, falling back to
// all runs when only the cold run exists.
func MeanTokensPerSecond(runs []RunResult) float64 {
	var (
		tokens int
		dur    time.Duration
	)
	for _, r := range runs {
		if r.Cold && len(runs) > 1 {
			continue
		}
		tokens += r.Tokens
		dur += r.Duration
	}
	return TokensPerSecond(tokens, dur)
}

// ---------------------------------------------------------------------------
// Throughput gate
// ---------------------------------------------------------------------------

// CheckMinThroughput returns an error if tps < minTPS.
// A minimum of 0 disables the gate.
func CheckMinThroughput(tps, minTPS float64) error {
	if minTPS <= 0 {
		return nil
	}
	if tps < minTPS {
		return fmt.Errorf("throughput %.0f tokens/s below minimum %.0f", tps, minTPS)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %8s  %12s  %8s\n", "Run", "Cold", "MS", "Tokens", "Tokens/s", "B/tok")
	fmt.Fprintln(sb, strings.Repeat("-", 58))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.3f  %8d  %12.0f  %8.2f\n",
			r.Index+1,
			cold,
			ms(r.Duration),
			r.Tokens,
			TokensPerSecond(r.Tokens, r.Duration),
			CompressionRatio(r.Bytes, r.Tokens),
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 58))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (min)\n", "", "", ms(stats.Min))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (mean)\n", "", "", ms(stats.Mean))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  (max)\n", "", "", ms(stats.Max))

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index            int     `json:"index"`
	Cold             bool    `json:"cold"`
	DurationMS       float64 `json:"duration_ms"`
	Tokens           int     `json:"tokens"`
	Bytes            int     `json:"bytes"`
	TokensPerSecond  float64 `json:"tokens_per_second"`
	CompressionRatio float64 `json:"bytes_per_token"`
}

type jsonStats struct {
	MinMS           float64 `json:"min_ms"`
	MeanMS          float64 `json:"mean_ms"`
	MaxMS           float64 `json:"max_ms"`
	TokensPerSecond float64 `json:"mean_tokens_per_second"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:           ms(stats.Min),
			MeanMS:          ms(stats.Mean),
			MaxMS:           ms(stats.Max),
			TokensPerSecond: MeanTokensPerSecond(runs),
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:            r.Index,
			Cold:             r.Cold,
			DurationMS:       ms(r.Duration),
			Tokens:           r.Tokens,
			Bytes:            r.Bytes,
			TokensPerSecond:  TokensPerSecond(r.Tokens, r.Duration),
			CompressionRatio: CompressionRatio(r.Bytes, r.Tokens),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
