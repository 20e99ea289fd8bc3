package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [ID...]",
		Short: "Decode token ids to text",
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ids, err := readIDs(args, os.Stdin)
			if err != nil {
				return err
			}

			v, err := loadVocab(cfg.Paths.Vocab)
			if err != nil {
				return err
			}

			return writeDecoding(v, ids, os.Stdout)
		},
	}

	return cmd
}

// readIDs parses ids from args, or from whitespace/comma separated stdin when
// no args are given.
func readIDs(args []string, stdin io.Reader) ([]int, error) {
	fields := args
	if len(fields) == 0 {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		fields = strings.FieldsFunc(string(b), func(r rune) bool {
			return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
		})
	}

	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(strings.Trim(f, "[],"))
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeDecoding(v *bpe.Vocabulary, ids []int, w io.Writer) error {
	text, err := v.Decode(ids)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}
