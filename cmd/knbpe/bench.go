package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/kannada-bpe/internal/bench"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		text      string
		file      string
		runs      int
		format    string
		minTokens float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark encode latency and throughput",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := benchText(text, file)
			if err != nil {
				return err
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			v, err := loadVocab(cfg.Paths.Vocab)
			if err != nil {
				return err
			}

			return runBench(cmd.Context(), v, input, runs, format, minTokens, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to encode for each run")
	cmd.Flags().StringVar(&file, "file", "", "Read the benchmark text from a file")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of encode runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&minTokens, "min-tokens-per-sec", 0, "Exit non-zero if mean throughput is below this value (0 = disabled)")

	return cmd
}

func benchText(text, file string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read bench text: %w", err)
		}
		text = string(b)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("--text or --file is required for bench")
	}
	return text, nil
}

func runBench(ctx context.Context, enc bench.Encoder, text string, runs int, format string, minTPS float64, w io.Writer) error {
	results, err := bench.Run(ctx, enc, text, runs)
	if err != nil {
		return err
	}

	stats := bench.ComputeStats(bench.Durations(results))

	switch format {
	case "json":
		bench.FormatJSON(results, stats, w)
	default:
		bench.FormatTable(results, stats, w)
	}

	return bench.CheckMinThroughput(bench.MeanTokensPerSecond(results), minTPS)
}
