package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds the configuration for the whole corpus pipeline
type Config struct {
	Vocab    VocabConfig    `toml:"vocab"`
	Examples ExamplesConfig `toml:"examples"`
	Batch    BatchConfig    `toml:"batch"`
	Paths    PathsConfig    `toml:"paths"`
	Logging  LoggingConfig  `toml:"logging"`
}

// VocabConfig caps the vocabulary
type VocabConfig struct {
	Size int `toml:"size"` // <= 0 means unlimited
}

// ExamplesConfig controls encoding and ingestion
type ExamplesConfig struct {
	MaxLen         int  `toml:"max_len"`
	LoadFirst      int  `toml:"load_first"`      // 0 means all rows
	BothDirections bool `toml:"both_directions"` // also ingest (line -> reply)
}

// BatchConfig controls shuffling and batch drawing
type BatchConfig struct {
	Size    int    `toml:"size"`
	Shuffle bool   `toml:"shuffle"`
	Seed    uint64 `toml:"seed"` // 0 means time-seeded
}

// PathsConfig locates the corpus and the cache
type PathsConfig struct {
	Corpus []string `toml:"corpus"`
	Cache  string   `toml:"cache"`
}

type LoggingConfig struct {
	Debug bool `toml:"debug"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Vocab: VocabConfig{
			Size: 40000,
		},
		Examples: ExamplesConfig{
			MaxLen:         25,
			LoadFirst:      0,
			BothDirections: true,
		},
		Batch: BatchConfig{
			Size:    64,
			Shuffle: true,
		},
		Paths: PathsConfig{
			Cache: "chatcorpus.cache",
		},
	}
}

// LoadFile overlays a TOML file onto cfg. Keys missing from the file keep
// their current values.
func (cfg *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown keys in config file", "path", path, "keys", undecoded)
	}
	slog.Debug("loaded config file", "path", path)
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (cfg *Config) Validate() error {
	if cfg.Examples.MaxLen < 1 {
		return fmt.Errorf("%w: examples.max_len must be at least 1, got %d", ErrInvalid, cfg.Examples.MaxLen)
	}
	if cfg.Examples.LoadFirst < 0 {
		return fmt.Errorf("%w: examples.load_first must not be negative, got %d", ErrInvalid, cfg.Examples.LoadFirst)
	}
	if cfg.Batch.Size < 1 {
		return fmt.Errorf("%w: batch.size must be at least 1, got %d", ErrInvalid, cfg.Batch.Size)
	}
	return nil
}

// Load builds a configuration from defaults, then the optional TOML file,
// then the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap describes every environment variable and its effective value.
func (cfg *Config) AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"CHATCORPUS_VOCAB_SIZE":  {"CHATCORPUS_VOCAB_SIZE", cfg.Vocab.Size, "Maximum vocabulary size, reserved tokens included (<= 0 for unlimited)"},
		"CHATCORPUS_MAX_LEN":     {"CHATCORPUS_MAX_LEN", cfg.Examples.MaxLen, "Maximum words kept per sentence (default 25)"},
		"CHATCORPUS_LOAD_FIRST":  {"CHATCORPUS_LOAD_FIRST", cfg.Examples.LoadFirst, "Only load the first N corpus rows (0 for all)"},
		"CHATCORPUS_BATCH_SIZE":  {"CHATCORPUS_BATCH_SIZE", cfg.Batch.Size, "Examples per batch"},
		"CHATCORPUS_SEED":        {"CHATCORPUS_SEED", cfg.Batch.Seed, "Shuffle seed (0 for time-seeded)"},
		"CHATCORPUS_CACHE":       {"CHATCORPUS_CACHE", cfg.Paths.Cache, "Location of the vocabulary and examples cache"},
		"CHATCORPUS_CORPUS":      {"CHATCORPUS_CORPUS", cfg.Paths.Corpus, "A comma separated list of corpus CSV files"},
		"CHATCORPUS_DEBUG":       {"CHATCORPUS_DEBUG", cfg.Logging.Debug, "Show additional debug information (e.g. CHATCORPUS_DEBUG=1)"},
		"CHATCORPUS_BIDIRECTION": {"CHATCORPUS_BIDIRECTION", cfg.Examples.BothDirections, "Ingest every row in both conversational directions"},
	}
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func envInt(key string, dst *int) error {
	if s := clean(key); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, s, err)
		}
		*dst = n
	}
	return nil
}

func envBool(key string, dst *bool) {
	if s := clean(key); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			// any other non-empty value turns the switch on
			b = true
		}
		*dst = b
	}
}

// ApplyEnv overlays CHATCORPUS_* environment variables onto cfg.
func (cfg *Config) ApplyEnv() error {
	for key, dst := range map[string]*int{
		"CHATCORPUS_VOCAB_SIZE": &cfg.Vocab.Size,
		"CHATCORPUS_MAX_LEN":    &cfg.Examples.MaxLen,
		"CHATCORPUS_LOAD_FIRST": &cfg.Examples.LoadFirst,
		"CHATCORPUS_BATCH_SIZE": &cfg.Batch.Size,
	} {
		if err := envInt(key, dst); err != nil {
			return err
		}
	}

	if s := clean("CHATCORPUS_SEED"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: CHATCORPUS_SEED=%q: %v", ErrInvalid, s, err)
		}
		cfg.Batch.Seed = seed
	}

	if s := clean("CHATCORPUS_CACHE"); s != "" {
		cfg.Paths.Cache = s
	}
	if s := clean("CHATCORPUS_CORPUS"); s != "" {
		cfg.Paths.Corpus = nil
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Paths.Corpus = append(cfg.Paths.Corpus, p)
			}
		}
	}

	envBool("CHATCORPUS_DEBUG", &cfg.Logging.Debug)
	envBool("CHATCORPUS_BIDIRECTION", &cfg.Examples.BothDirections)
	return nil
}

// Example returns a commented example TOML configuration
func Example() string {
	return `# chatcorpus configuration file

[vocab]
# Maximum vocabulary size including <go>, <eos> and <unknown> (<= 0: unlimited)
size = 40000

[examples]
# Words kept per sentence (default: 25)
max_len = 25
# Only load the first N rows of the corpus (default: 0 = all)
load_first = 0
# Ingest every row as reply -> line and line -> reply (default: true)
both_directions = true

[batch]
size = 64
shuffle = true
# Shuffle seed (default: 0 = time-seeded)
seed = 0

[paths]
corpus = ["dialogues.csv"]
cache = "chatcorpus.cache"

[logging]
debug = false
`
}
