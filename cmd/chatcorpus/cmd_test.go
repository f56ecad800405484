package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djeday123/chatcorpus/dataset"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), errOut.String())
	return out.String()
}

func writeCorpus(t *testing.T) (csvPath, cachePath string) {
	t.Helper()
	dir := t.TempDir()
	csvPath = filepath.Join(dir, "dialogues.csv")
	data := "line,reply\nhi there.,hello!\nhow are you?,fine.\nhello!,hi.\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(data), 0o644))
	return csvPath, filepath.Join(dir, "corpus.cache")
}

func TestBuild(t *testing.T) {
	csvPath, cachePath := writeCorpus(t)

	out := run(t, "build", "-q", "--corpus", csvPath, "--cache", cachePath)
	assert.Contains(t, out, "rows:        3")
	assert.Contains(t, out, "examples:    6")
	assert.FileExists(t, cachePath)

	out = run(t, "build", "-q", "--corpus", csvPath, "--cache", cachePath)
	assert.Contains(t, out, "cache is up to date")

	out = run(t, "build", "-q", "--force", "--corpus", csvPath, "--cache", cachePath)
	assert.NotContains(t, out, "up to date")
}

func TestVocab(t *testing.T) {
	csvPath, cachePath := writeCorpus(t)

	out := run(t, "vocab", "-q", "-n", "3", "--corpus", csvPath, "--cache", cachePath)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "4\t.", lines[0])
}

func TestBatches(t *testing.T) {
	csvPath, cachePath := writeCorpus(t)

	out := run(t, "batches", "-q", "--corpus", csvPath, "--cache", cachePath,
		"--batch-size", "4", "--no-shuffle", "--one-direction")
	assert.Contains(t, out, "batch at 0: 3 examples")
	assert.Contains(t, out, "encoder_input")
	assert.Contains(t, out, "epoch 1: 1 batches, 3 examples")
	assert.Contains(t, out, "padding: ")
}

func TestPadding(t *testing.T) {
	b, err := dataset.NewBatch([]dataset.Example{
		{Input: []int64{5, 6}, Target: []int64{1, 5, 6, 2}},
		{Input: []int64{7}, Target: []int64{1, 7, 2}},
	})
	require.NoError(t, err)

	var p padding
	assert.Zero(t, p.share())

	// encoder (2,2) has one pad, decoder input and target (3,2) have one each
	p.add(b)
	assert.Equal(t, 3, p.pads)
	assert.Equal(t, 16, p.total)
	assert.InDelta(t, 3.0/16, p.share(), 1e-9)
}

func TestEnv(t *testing.T) {
	t.Setenv("CHATCORPUS_MAX_LEN", "12")
	out := run(t, "env")
	assert.Contains(t, out, "CHATCORPUS_MAX_LEN=12")
	assert.Contains(t, out, "CHATCORPUS_VOCAB_SIZE=40000")
}

func TestConfigExample(t *testing.T) {
	out := run(t, "config")
	assert.Contains(t, out, "[vocab]")
}
