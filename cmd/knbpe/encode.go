package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/example/kannada-bpe/internal/visualize"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var (
		text   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode text to token ids",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readInput(text, os.Stdin)
			if err != nil {
				return err
			}

			v, err := loadVocab(cfg.Paths.Vocab)
			if err != nil {
				return err
			}

			return writeEncoding(v, input, format, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to encode (if empty, read from stdin)")
	cmd.Flags().StringVar(&format, "format", "ids", "Output format: ids|json|spans")

	return cmd
}

func writeEncoding(v *bpe.Vocabulary, text, format string, w io.Writer) error {
	switch format {
	case "ids":
		_, err := fmt.Fprintln(w, joinIDs(v.Encode(text)))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(visualize.Build(v.EncodeChunks(text), v))
	case "spans":
		visualize.FormatTable(visualize.Build(v.EncodeChunks(text), v), w)
		return nil
	default:
		return fmt.Errorf("--format must be 'ids', 'json' or 'spans'")
	}
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
