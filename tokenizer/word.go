package tokenizer

import (
	"errors"
	"iter"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// DefaultPattern splits text into words, numbers, sentence-final punctuation
// and any other single non-space symbol. Punctuation is always a separate token.
const DefaultPattern = `(?<word>\p{L}[\p{L}\p{M}]*(?:'\p{L}+)*)` +
	`|(?<number>\p{N}+(?:[.,]\p{N}+)*)` +
	`|(?<endpunct>[.!?\u2026]+)` +
	`|(?<punct>[^\s\p{L}\p{N}])`

var ErrInvalidUTF8 = errors.New("invalid utf-8")

// WordTokenizer is a regex pre-tokenizer producing tagged word tokens.
type WordTokenizer struct {
	re   *regexp2.Regexp
	tags []string
}

// NewWordTokenizer compiles pattern. Every named group in the pattern becomes
// a tag; a match is tagged with the first named group that captured.
// A zero timeout disables the per-match timeout.
func NewWordTokenizer(pattern string, timeout time.Duration) (*WordTokenizer, error) {
	re, err := regexp2.Compile(pattern, regexp2.Unicode)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}

	var tags []string
	for _, name := range re.GetGroupNames() {
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			continue
		}
		tags = append(tags, name)
	}
	return &WordTokenizer{re: re, tags: tags}, nil
}

// Default returns a WordTokenizer using DefaultPattern.
func Default() *WordTokenizer {
	t, err := NewWordTokenizer(DefaultPattern, time.Second)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *WordTokenizer) Tokenize(text string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		if !utf8.ValidString(text) {
			yield(Token{}, &TokenizationError{Text: text, Offset: firstInvalid(text), Err: ErrInvalidUTF8})
			return
		}

		m, err := t.re.FindStringMatch(text)
		for m != nil {
			if !yield(Token{Tag: t.tag(m), Word: m.String()}, nil) {
				return
			}
			m, err = t.re.FindNextMatch(m)
		}
		if err != nil {
			yield(Token{}, &TokenizationError{Text: text, Err: err})
		}
	}
}

func (t *WordTokenizer) tag(m *regexp2.Match) string {
	for _, name := range t.tags {
		if g := m.GroupByName(name); g != nil && len(g.Captures) > 0 {
			return name
		}
	}
	return TagWord
}

func firstInvalid(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(s)
}
