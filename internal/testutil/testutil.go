// Package testutil provides shared Kannada fixtures and skip helpers for tests.
//
// Typical usage:
//
//	func TestTrainOnSample(t *testing.T) {
//	    corpus := testutil.KannadaCorpus()
//	    path := testutil.WriteFile(t, "corpus.txt", corpus)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// KannadaSentences are the example sentences of the tokenizer demo.
var KannadaSentences = []string{
	"ನಮಸ್ಕಾರ, ಇದು ಕನ್ನಡ ಟೋಕನೈಜರ್ ಆಗಿದೆ",
	"ಅವನು ಬರುತ್ತಿದ್ದಾನೆ ಎಂದು ನನಗೆ ಗೊತ್ತು.",
	"ಅವಳು ಕೆಲಸ ಮುಗಿಸಿದ ನಂತರ ಮನೆಗೆ ಹೋದಳು.",
	"ನಾನು ಸೂರ್ಯ ಮುಳುಗುವುದಾದ ಯಾವಾಗ ಹೊರಗಡೆ ಹೋದೆನು.",
	"ಅವಳು ಮನೆಗೆ ಬಾರದ ಕಾರಣ, ಏಕೆಂದರೆ ಅವಳು ಕೆಲಸದಲ್ಲಿ ಬ್ಯುಸಿಯಾಗಿದ್ದಳು.",
	"ಕರ್ನಾಟಕದ ರಾಜಧಾನಿ ಬೆಂಗಳೂರು.",
	"ಮಕ್ಕಳು ಶಾಲೆಗೆ ಹೋಗುತ್ತಾರೆ ಮತ್ತು ಪಾಠ ಕಲಿಯುತ್ತಾರೆ.",
	"ಈ ಪುಸ್ತಕವನ್ನು ನಾನು ನಿನ್ನೆ ಓದಿದೆ.",
}

// HeldOutSentences do not appear in KannadaCorpus.
var HeldOutSentences = []string{
	"ಮಳೆಗಾಲದಲ್ಲಿ ನದಿಗಳು ತುಂಬಿ ಹರಿಯುತ್ತವೆ.",
	"ಕ್ಷಮಿಸಿ, ರೈಲು ನಿಲ್ದಾಣ ಎಲ್ಲಿದೆ?",
	"೨೦೨೪ರಲ್ಲಿ 42 ಹೊಸ ಶಾಲೆಗಳು ತೆರೆದವು!",
	"ಕ\u200dಷ ಮತ್ತು ಕ\u200cಷ",
}

// KannadaCorpus returns a small training corpus: the demo sentences repeated
// a few times and joined the way corpus documents are joined.
func KannadaCorpus() string {
	docs := make([]string, 0, 3*len(KannadaSentences))
	for range 3 {
		docs = append(docs, KannadaSentences...)
	}

	return strings.Join(docs, "\n\n")
}

// WriteFile writes content to name inside a fresh temp dir and returns the path.
func WriteFile(tb testing.TB, name, content string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), name)

	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}

	return path
}

// RequireCorpus skips the test unless KNBPE_TEST_CORPUS names a readable
// corpus file, and returns its contents.
func RequireCorpus(tb testing.TB) string {
	tb.Helper()

	path := os.Getenv("KNBPE_TEST_CORPUS")
	if path == "" {
		tb.Skip("KNBPE_TEST_CORPUS not set; skipping large-corpus test")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		tb.Skipf("corpus not readable at KNBPE_TEST_CORPUS=%q: %v", path, err)
	}

	return string(data)
}
