package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		merges int
		token  int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the vocabulary, its first merges or a single token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			v, err := loadVocab(cfg.Paths.Vocab)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("token") {
				return writeToken(v, token, os.Stdout)
			}
			writeSummary(v, merges, os.Stdout)
			return nil
		},
	}

	cmd.Flags().IntVar(&merges, "merges", 10, "Number of merges to list in rank order")
	cmd.Flags().IntVar(&token, "token", 0, "Show a single token by id")

	return cmd
}

func writeSummary(v *bpe.Vocabulary, n int, w io.Writer) {
	_, _ = fmt.Fprintf(w, "vocab size:      %d\n", v.Size())
	_, _ = fmt.Fprintf(w, "base size:       %d\n", bpe.BaseSize)
	_, _ = fmt.Fprintf(w, "merges:          %d\n", v.NumMerges())
	_, _ = fmt.Fprintf(w, "pattern version: %d\n", v.PatternVersion())
	_, _ = fmt.Fprintf(w, "pattern:         %s\n", v.Pattern())

	all := v.Merges()
	if n > len(all) {
		n = len(all)
	}
	if n <= 0 {
		return
	}

	_, _ = fmt.Fprintf(w, "\n%-6s  %-6s  %-6s  %-6s  %s\n", "Rank", "Left", "Right", "ID", "Token")
	for _, m := range all[:n] {
		text, _ := v.TokenText(m.ID)
		_, _ = fmt.Fprintf(w, "%-6d  %-6d  %-6d  %-6d  %s\n", m.Rank(), m.Left, m.Right, m.ID, strconv.Quote(text))
	}
}

func writeToken(v *bpe.Vocabulary, id int, w io.Writer) error {
	b, ok := v.TokenBytes(id)
	if !ok {
		return fmt.Errorf("%w: %d (vocabulary size %d)", bpe.ErrUnknownToken, id, v.Size())
	}

	_, _ = fmt.Fprintf(w, "id:    %d\n", id)
	_, _ = fmt.Fprintf(w, "text:  %s\n", strconv.Quote(string(b)))
	_, _ = fmt.Fprintf(w, "hex:   %s\n", hex.EncodeToString(b))
	_, _ = fmt.Fprintf(w, "bytes: %d\n", len(b))

	if id >= bpe.BaseSize {
		m := v.Merges()[id-bpe.BaseSize]
		_, _ = fmt.Fprintf(w, "merge: %d + %d (rank %d)\n", m.Left, m.Right, m.Rank())
	}
	return nil
}
