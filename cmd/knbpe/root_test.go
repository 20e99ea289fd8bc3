package main

import (
	"strings"
	"testing"

	"github.com/example/kannada-bpe/internal/config"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"train", "encode", "decode", "inspect", "serve", "health", "doctor", "bench"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentConfigFlag(t *testing.T) {
	root := NewRootCmd()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected --config persistent flag to be registered")
	}
	if root.PersistentFlags().Lookup("paths-vocab") == nil {
		t.Error("expected --paths-vocab persistent flag to be registered")
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		setupLogger(level)
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(_ *testing.T) {
	// Should not panic on invalid level.
	setupLogger("not-a-level")
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}

	_, err := requireConfig()
	if err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{
		Paths: config.PathsConfig{Vocab: "/some/vocab.json"},
	}

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.Paths.Vocab != "/some/vocab.json" {
		t.Errorf("unexpected Vocab: %q", got.Paths.Vocab)
	}
}

func TestRootCmd_InvalidConfigRejected(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"inspect", "--vocab-size", "10"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "vocab_size") {
		t.Fatalf("Execute() = %v; want vocab_size validation error", err)
	}
}

func TestReadInput(t *testing.T) {
	t.Run("uses flag text", func(t *testing.T) {
		got, err := readInput("ಕನ್ನಡ", strings.NewReader("ignored"))
		if err != nil {
			t.Fatalf("readInput returned error: %v", err)
		}
		if got != "ಕನ್ನಡ" {
			t.Fatalf("expected flag text, got %q", got)
		}
	})

	t.Run("falls back to stdin", func(t *testing.T) {
		got, err := readInput("", strings.NewReader(" ಕನ್ನಡ \n"))
		if err != nil {
			t.Fatalf("readInput returned error: %v", err)
		}
		if got != " ಕನ್ನಡ " {
			t.Fatalf("expected stdin without trailing newline, got %q", got)
		}
	})

	t.Run("fails when both empty", func(t *testing.T) {
		_, err := readInput("", strings.NewReader("\n"))
		if err == nil {
			t.Fatal("expected error for empty input")
		}
	})
}
