package dataset

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djeday123/chatcorpus/tokenizer"
	"github.com/djeday123/chatcorpus/vocab"
)

func newEncoder(t *testing.T, lines []string, capacity, maxLen int) *Encoder {
	t.Helper()
	tok := tokenizer.Default()
	v, _ := vocab.Build(slices.Values(lines), tok, capacity)
	return NewEncoder(v, tok, maxLen)
}

func ids(t *testing.T, v *vocab.Vocabulary, words ...string) []int64 {
	t.Helper()
	out := make([]int64, len(words))
	for i, w := range words {
		id, ok := v.ID(w)
		require.True(t, ok, "word %q not in vocabulary", w)
		out[i] = id
	}
	return out
}

func TestEncode(t *testing.T) {
	enc := newEncoder(t, []string{"hi there.", "hello!"}, -1, DefaultMaxLen)

	got, ok, err := enc.Encode("Hi there.")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{4, 5, 6}, got)

	got, ok, err = enc.Encode("hello stranger!")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{7, enc.Vocab.Unknown(), 8}, got)
}

func TestEncodeNormalizerReuse(t *testing.T) {
	enc := newEncoder(t, []string{"hi there."}, 0, DefaultMaxLen)
	norm := enc.norm
	require.NotNil(t, norm)

	for range 2 {
		got, ok, err := enc.Encode("HI THERE.")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []int64{4, 5, 6}, got)
	}
	assert.Same(t, norm, enc.norm)

	literal := &Encoder{Vocab: enc.Vocab, Tokenizer: enc.Tokenizer}
	got, ok, err := literal.Encode("There")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{5}, got)
	assert.NotNil(t, literal.norm)
}

func TestEncodeAbsent(t *testing.T) {
	enc := newEncoder(t, []string{"hi"}, 0, DefaultMaxLen)

	for _, text := range []string{"", "   ", "\t\n"} {
		got, ok, err := enc.Encode(text)
		require.NoError(t, err)
		assert.False(t, ok, "%q", text)
		assert.Nil(t, got)
	}
}

func TestEncodeTruncation(t *testing.T) {
	words := strings.Repeat("word ", 40)
	enc := newEncoder(t, []string{words}, 0, DefaultMaxLen)

	got, ok, err := enc.Encode(words)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, DefaultMaxLen)
}

func TestEncodeStopsAtSentenceEnd(t *testing.T) {
	enc := newEncoder(t, []string{"one two. three four!"}, 0, DefaultMaxLen)

	got, ok, err := enc.Encode("one two. three four!")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids(t, enc.Vocab, "one", "two", "."), got)
}

func TestEncodeTerminatorCountsTowardLimit(t *testing.T) {
	enc := newEncoder(t, []string{"a b c."}, 0, 3)

	got, _, err := enc.Encode("a b c.")
	require.NoError(t, err)
	assert.Equal(t, ids(t, enc.Vocab, "a", "b", "c"), got)

	got, _, err = enc.Encode("a b.")
	require.NoError(t, err)
	assert.Equal(t, ids(t, enc.Vocab, "a", "b", "."), got)
}

func TestEncodeNoLimit(t *testing.T) {
	words := strings.Repeat("word ", 40)
	enc := newEncoder(t, []string{words}, 0, 0)

	got, _, err := enc.Encode(words)
	require.NoError(t, err)
	assert.Len(t, got, 40)
}

func TestEncodeTokenizationError(t *testing.T) {
	enc := newEncoder(t, []string{"hi"}, 0, DefaultMaxLen)

	_, ok, err := enc.Encode("hi \xfe")
	assert.False(t, ok)
	var terr *tokenizer.TokenizationError
	assert.True(t, errors.As(err, &terr))
}

func TestExample(t *testing.T) {
	enc := newEncoder(t, []string{"hi there.", "hello!"}, -1, DefaultMaxLen)
	v := enc.Vocab

	ex, ok, err := enc.Example("hello!", "hi there.")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, ids(t, v, "!", "hello"), ex.Input)
	assert.Equal(t, []int64{v.Go(), 4, 5, 6, v.EOS()}, ex.Target)
}

func TestExampleFraming(t *testing.T) {
	enc := newEncoder(t, []string{"a b c d e f"}, 0, 4)
	v := enc.Vocab

	ex, ok, err := enc.Example("a b c d e f", "a b c d e f")
	require.NoError(t, err)
	require.True(t, ok)

	encoded, _, _ := enc.Encode("a b c d e f")
	reversed := slices.Clone(encoded)
	slices.Reverse(reversed)
	assert.Equal(t, reversed, ex.Input)

	assert.Len(t, ex.Target, len(encoded)+2)
	assert.Equal(t, v.Go(), ex.Target[0])
	assert.Equal(t, v.EOS(), ex.Target[len(ex.Target)-1])
}

func TestExampleDropped(t *testing.T) {
	enc := newEncoder(t, []string{"hi"}, 0, DefaultMaxLen)

	cases := map[string][2]string{
		"empty target": {"hi", ""},
		"empty input":  {"", "hi"},
		"blank input":  {"  ", "hi"},
		"blank target": {"hi", " "},
	}
	for name, pair := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok, err := enc.Example(pair[0], pair[1])
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
