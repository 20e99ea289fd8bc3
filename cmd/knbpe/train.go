package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/kannada-bpe/internal/bench"
	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/example/kannada-bpe/internal/config"
	"github.com/example/kannada-bpe/internal/corpus"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var (
		corpusPaths []string
		out         string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Learn merges from a corpus and save the vocabulary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if len(corpusPaths) > 0 {
				cfg.Paths.Corpus = corpusPaths
			}
			if out != "" {
				cfg.Paths.Vocab = out
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runTrain(ctx, cfg, slog.Default(), os.Stdout)
		},
	}

	cmd.Flags().StringSliceVar(&corpusPaths, "corpus", nil, "Corpus files (overrides --paths-corpus)")
	cmd.Flags().StringVar(&out, "out", "", "Output vocabulary path (overrides --paths-vocab)")

	return cmd
}

// runTrain loads the corpus, trains and saves the vocabulary. A cancelled
// run still saves the merges learned so far before returning ctx.Err().
func runTrain(ctx context.Context, cfg config.Config, logger *slog.Logger, w io.Writer) error {
	text, err := corpus.Load(corpus.Options{
		Paths:    cfg.Paths.Corpus,
		NFC:      cfg.Train.NFC,
		Newlines: cfg.Train.Newlines,
		MaxDocs:  cfg.Train.MaxDocs,
		MaxBytes: cfg.Train.MaxBytes,
	})
	if err != nil {
		return err
	}

	stats := corpus.Measure(text)
	logger.Info("corpus loaded",
		slog.Int("files", len(cfg.Paths.Corpus)),
		slog.Int("bytes", stats.Bytes),
		slog.Int("runes", stats.Runes),
		slog.Float64("kannada_share", stats.KannadaShare()),
	)

	v, trainErr := bpe.Train(ctx, text, cfg.Train.VocabSize,
		bpe.WithWorkers(cfg.Train.Workers),
		bpe.WithLogEvery(cfg.Train.LogEvery),
		bpe.WithLogger(logger),
	)
	if trainErr != nil && !errors.Is(trainErr, context.Canceled) && !errors.Is(trainErr, context.DeadlineExceeded) {
		return trainErr
	}

	if err := bpe.Save(v, cfg.Paths.Vocab); err != nil {
		return err
	}

	tokens := len(v.Encode(text))

	if trainErr != nil {
		_, _ = fmt.Fprintf(w, "training interrupted after %d of %d merges\n",
			v.NumMerges(), cfg.Train.VocabSize-bpe.BaseSize)
	}
	_, _ = fmt.Fprintf(w, "saved %s: %d tokens (%d merges)\n", cfg.Paths.Vocab, v.Size(), v.NumMerges())
	_, _ = fmt.Fprintf(w, "corpus: %d bytes -> %d tokens (%.2f bytes/token)\n",
		stats.Bytes, tokens, bench.CompressionRatio(stats.Bytes, tokens))

	return trainErr
}
