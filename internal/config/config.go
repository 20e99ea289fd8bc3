package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type Config struct {
	Paths    PathsConfig  `mapstructure:"paths"`
	Train    TrainConfig  `mapstructure:"train"`
	Server   ServerConfig `mapstructure:"server"`
	LogLevel string       `mapstructure:"log_level"`
}

type PathsConfig struct {
	Vocab  string   `mapstructure:"vocab"`
	Corpus []string `mapstructure:"corpus"`
}

type TrainConfig struct {
	VocabSize int  `mapstructure:"vocab_size"`
	Workers   int  `mapstructure:"workers"`
	LogEvery  int  `mapstructure:"log_every"`
	NFC       bool `mapstructure:"nfc"`
	Newlines  bool `mapstructure:"newlines"`
	MaxDocs   int  `mapstructure:"max_docs"`
	MaxBytes  int  `mapstructure:"max_bytes"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			Vocab: "model/vocab.json",
		},
		Train: TrainConfig{
			VocabSize: 5000,
			Workers:   0,
			LogEvery:  500,
			NFC:       false,
			Newlines:  true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			MaxTextBytes:    64 * 1024,
			RequestTimeout:  30,
			ShutdownTimeout: 30,
		},
		LogLevel: "info",
	}
}

// flagKeys maps each flag to the config key it overrides.
var flagKeys = []struct{ flag, key string }{
	{"paths-vocab", "paths.vocab"},
	{"paths-corpus", "paths.corpus"},
	{"vocab-size", "train.vocab_size"},
	{"train-workers", "train.workers"},
	{"log-every", "train.log_every"},
	{"nfc", "train.nfc"},
	{"newlines", "train.newlines"},
	{"max-docs", "train.max_docs"},
	{"max-bytes", "train.max_bytes"},
	{"server-listen-addr", "server.listen_addr"},
	{"server-workers", "server.workers"},
	{"server-max-text-bytes", "server.max_text_bytes"},
	{"server-request-timeout", "server.request_timeout"},
	{"server-shutdown-timeout", "server.shutdown_timeout"},
	{"log-level", "log_level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-vocab", defaults.Paths.Vocab, "Path to the vocabulary artifact (JSON)")
	fs.StringSlice("paths-corpus", defaults.Paths.Corpus, "Training corpus files (UTF-8, repeatable)")
	fs.Int("vocab-size", defaults.Train.VocabSize, "Target vocabulary size including the 256 byte tokens")
	fs.Int("train-workers", defaults.Train.Workers, "Training shards counted in parallel (0 = GOMAXPROCS)")
	fs.Int("log-every", defaults.Train.LogEvery, "Log training progress every N merges (0 = off)")
	fs.Bool("nfc", defaults.Train.NFC, "Apply Unicode NFC to the corpus before training")
	fs.Bool("newlines", defaults.Train.Newlines, "Normalize CRLF/CR line endings in the corpus")
	fs.Int("max-docs", defaults.Train.MaxDocs, "Keep at most N corpus documents (0 = all)")
	fs.Int("max-bytes", defaults.Train.MaxBytes, "Truncate the corpus to N bytes (0 = no cap)")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent encode/decode requests")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("KNBPE")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("knbpe")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate reports every setting that cannot work.
func (c Config) Validate() error {
	var errs error

	if strings.TrimSpace(c.Paths.Vocab) == "" {
		errs = multierr.Append(errs, errors.New("paths.vocab is empty"))
	}
	if c.Train.VocabSize < bpe.BaseSize {
		errs = multierr.Append(errs, fmt.Errorf("train.vocab_size %d: %w", c.Train.VocabSize, bpe.ErrVocabSize))
	}
	if c.Train.Workers < 0 {
		errs = multierr.Append(errs, fmt.Errorf("train.workers %d is negative", c.Train.Workers))
	}
	if c.Server.Workers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("server.workers %d must be at least 1", c.Server.Workers))
	}
	if c.Server.MaxTextBytes < 1 {
		errs = multierr.Append(errs, fmt.Errorf("server.max_text_bytes %d must be positive", c.Server.MaxTextBytes))
	}

	return errs
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", fk.flag, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.vocab", c.Paths.Vocab)
	v.SetDefault("paths.corpus", c.Paths.Corpus)
	v.SetDefault("train.vocab_size", c.Train.VocabSize)
	v.SetDefault("train.workers", c.Train.Workers)
	v.SetDefault("train.log_every", c.Train.LogEvery)
	v.SetDefault("train.nfc", c.Train.NFC)
	v.SetDefault("train.newlines", c.Train.Newlines)
	v.SetDefault("train.max_docs", c.Train.MaxDocs)
	v.SetDefault("train.max_bytes", c.Train.MaxBytes)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}
