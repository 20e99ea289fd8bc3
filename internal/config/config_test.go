package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered and parses args.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	return &fakeBinder{fs: fs}
}

// writeConfig writes content to name in a temp dir and returns the path.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)

	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Paths.Vocab != "model/vocab.json" {
		t.Errorf("Paths.Vocab = %q; want %q", cfg.Paths.Vocab, "model/vocab.json")
	}

	if cfg.Train.VocabSize != 5000 {
		t.Errorf("Train.VocabSize = %d; want 5000", cfg.Train.VocabSize)
	}

	if cfg.Train.LogEvery != 500 {
		t.Errorf("Train.LogEvery = %d; want 500", cfg.Train.LogEvery)
	}

	if !cfg.Train.Newlines {
		t.Error("Train.Newlines = false; want true")
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}

	if cfg.Server.Workers != 4 {
		t.Errorf("Server.Workers = %d; want 4", cfg.Server.Workers)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v; want nil", err)
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"paths-vocab", "model/vocab.json"},
		{"vocab-size", "5000"},
		{"server-listen-addr", ":8080"},
		{"newlines", "true"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}

	for _, fk := range flagKeys {
		if fs.Lookup(fk.flag) == nil {
			t.Errorf("flag %q bound to %q is not registered", fk.flag, fk.key)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.Vocab != defaults.Paths.Vocab {
		t.Errorf("Paths.Vocab = %q; want %q", cfg.Paths.Vocab, defaults.Paths.Vocab)
	}

	if cfg.Train.VocabSize != defaults.Train.VocabSize {
		t.Errorf("Train.VocabSize = %d; want %d", cfg.Train.VocabSize, defaults.Train.VocabSize)
	}

	if len(cfg.Paths.Corpus) != 0 {
		t.Errorf("Paths.Corpus = %v; want empty", cfg.Paths.Corpus)
	}

	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, defaults.LogLevel)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(t, defaults,
		"--vocab-size=800",
		"--paths-corpus=a.txt,b.txt",
		"--nfc",
		"--server-workers=8",
		"--log-level=debug",
	)

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Train.VocabSize != 800 {
		t.Errorf("Train.VocabSize = %d; want 800", cfg.Train.VocabSize)
	}

	if strings.Join(cfg.Paths.Corpus, ",") != "a.txt,b.txt" {
		t.Errorf("Paths.Corpus = %v; want [a.txt b.txt]", cfg.Paths.Corpus)
	}

	if !cfg.Train.NFC {
		t.Error("Train.NFC = false; want true")
	}

	if cfg.Server.Workers != 8 {
		t.Errorf("Server.Workers = %d; want 8", cfg.Server.Workers)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("KNBPE_LOG_LEVEL", "warn")
	t.Setenv("KNBPE_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("KNBPE_TRAIN_VOCAB_SIZE", "1200")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}

	if cfg.Train.VocabSize != 1200 {
		t.Errorf("Train.VocabSize = %d; want 1200", cfg.Train.VocabSize)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	cfgFile := writeConfig(t, "knbpe.yaml", `
log_level: error
paths:
  vocab: out/vocab.json
  corpus:
    - data/kn.txt
train:
  vocab_size: 3000
  nfc: true
server:
  workers: 16
  listen_addr: ":7777"
`)

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Paths.Vocab != "out/vocab.json" {
		t.Errorf("Paths.Vocab = %q; want %q", cfg.Paths.Vocab, "out/vocab.json")
	}

	if len(cfg.Paths.Corpus) != 1 || cfg.Paths.Corpus[0] != "data/kn.txt" {
		t.Errorf("Paths.Corpus = %v; want [data/kn.txt]", cfg.Paths.Corpus)
	}

	if cfg.Train.VocabSize != 3000 || !cfg.Train.NFC {
		t.Errorf("Train = %+v", cfg.Train)
	}

	if cfg.Server.Workers != 16 {
		t.Errorf("Server.Workers = %d; want 16", cfg.Server.Workers)
	}

	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":7777")
	}

	// Untouched keys keep their defaults.
	if cfg.Server.MaxTextBytes != defaults.Server.MaxTextBytes {
		t.Errorf("Server.MaxTextBytes = %d; want %d", cfg.Server.MaxTextBytes, defaults.Server.MaxTextBytes)
	}
}

func TestLoad_FlagBeatsConfigFile(t *testing.T) {
	cfgFile := writeConfig(t, "knbpe.yaml", "train:\n  vocab_size: 3000\n")
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults, "--vocab-size=700"),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Train.VocabSize != 700 {
		t.Errorf("Train.VocabSize = %d; want 700", cfg.Train.VocabSize)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	cfgFile := writeConfig(t, "bad.yaml", ":\t:bad yaml:::")

	_, err := Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/knbpe.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

// --- Validate ---

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.Vocab = " "
	cfg.Train.VocabSize = 10
	cfg.Server.Workers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil; want error")
	}

	if !errors.Is(err, bpe.ErrVocabSize) {
		t.Errorf("Validate() = %v; want ErrVocabSize in chain", err)
	}

	for _, want := range []string{"paths.vocab", "train.vocab_size", "server.workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %q; want mention of %q", err, want)
		}
	}
}
