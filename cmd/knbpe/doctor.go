package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/example/kannada-bpe/internal/config"
	"github.com/example/kannada-bpe/internal/doctor"
	"github.com/example/kannada-bpe/internal/server"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var (
		sample string
		probe  bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the vocabulary artifact and corpus files",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return runDoctor(cfg, sample, probe, os.Stdout, os.Stderr)
		},
	}

	cmd.Flags().StringVar(&sample, "sample", "", "Text to round-trip (default: built-in Kannada sample)")
	cmd.Flags().BoolVar(&probe, "probe", false, "Also probe the configured server's /health endpoint")

	return cmd
}

func runDoctor(cfg config.Config, sample string, probe bool, stdout, stderr io.Writer) error {
	result := doctor.Run(doctor.Config{
		VocabPath:   cfg.Paths.Vocab,
		Sample:      sample,
		CorpusFiles: cfg.Paths.Corpus,
	}, stdout)

	if probe {
		if err := server.ProbeHTTP(cfg.Server.ListenAddr); err != nil {
			result.AddFailure(fmt.Sprintf("server probe: %v", err))
			_, _ = fmt.Fprintf(stdout, "%s server probe: %v\n", doctor.FailMark, err)
		} else {
			_, _ = fmt.Fprintf(stdout, "%s server probe: %s\n", doctor.PassMark, cfg.Server.ListenAddr)
		}
	}

	if result.Failed() {
		for _, f := range result.Failures() {
			fmt.Fprintf(stderr, "FAIL: %s\n", f)
		}

		return errors.New("doctor checks failed")
	}

	_, _ = fmt.Fprintln(stdout, "doctor checks passed")

	return nil
}
