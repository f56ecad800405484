package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 25, cfg.Examples.MaxLen)
	assert.Equal(t, 0, cfg.Examples.LoadFirst)
	assert.Positive(t, cfg.Batch.Size)
	assert.NotEmpty(t, cfg.Paths.Cache)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"max len":    func(c *Config) { c.Examples.MaxLen = 0 },
		"load first": func(c *Config) { c.Examples.LoadFirst = -1 },
		"batch size": func(c *Config) { c.Batch.Size = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	cfg := DefaultConfig()
	cfg.Vocab.Size = -1
	assert.NoError(t, cfg.Validate(), "unlimited vocabulary is valid")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[vocab]
size = -1

[examples]
max_len = 10

[paths]
corpus = ["a.csv", "b.csv"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Vocab.Size)
	assert.Equal(t, 10, cfg.Examples.MaxLen)
	assert.Equal(t, []string{"a.csv", "b.csv"}, cfg.Paths.Corpus)
	assert.Equal(t, 64, cfg.Batch.Size, "untouched keys keep defaults")
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[vocab\nsize = "), 0o644))

	_, err := Load(bad)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestExampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.toml")
	require.NoError(t, os.WriteFile(path, []byte(Example()), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dialogues.csv"}, cfg.Paths.Corpus)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CHATCORPUS_VOCAB_SIZE", "0")
	t.Setenv("CHATCORPUS_MAX_LEN", " '12' ")
	t.Setenv("CHATCORPUS_LOAD_FIRST", "100")
	t.Setenv("CHATCORPUS_BATCH_SIZE", "8")
	t.Setenv("CHATCORPUS_SEED", "42")
	t.Setenv("CHATCORPUS_CACHE", "/tmp/c.cache")
	t.Setenv("CHATCORPUS_CORPUS", "x.csv, y.csv,")
	t.Setenv("CHATCORPUS_DEBUG", "1")
	t.Setenv("CHATCORPUS_BIDIRECTION", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Vocab.Size)
	assert.Equal(t, 12, cfg.Examples.MaxLen)
	assert.Equal(t, 100, cfg.Examples.LoadFirst)
	assert.Equal(t, 8, cfg.Batch.Size)
	assert.Equal(t, uint64(42), cfg.Batch.Seed)
	assert.Equal(t, "/tmp/c.cache", cfg.Paths.Cache)
	assert.Equal(t, []string{"x.csv", "y.csv"}, cfg.Paths.Corpus)
	assert.True(t, cfg.Logging.Debug)
	assert.False(t, cfg.Examples.BothDirections)
}

func TestApplyEnvErrors(t *testing.T) {
	t.Setenv("CHATCORPUS_MAX_LEN", "many")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)

	t.Setenv("CHATCORPUS_MAX_LEN", "")
	t.Setenv("CHATCORPUS_SEED", "-3")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalid)

	t.Setenv("CHATCORPUS_SEED", "")
	t.Setenv("CHATCORPUS_BATCH_SIZE", "0")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAsMap(t *testing.T) {
	cfg := DefaultConfig()
	m := cfg.AsMap()
	for key, v := range m {
		assert.Equal(t, key, v.Name)
		assert.NotEmpty(t, v.Description, key)
	}
	assert.Equal(t, 25, m["CHATCORPUS_MAX_LEN"].Value)
}
