package tokenizer

import (
	"fmt"
	"iter"
)

// Token tags produced by the tokenizers in this package.
const (
	TagWord     = "word"
	TagNumber   = "number"
	TagPunct    = "punct"
	TagEndPunct = "endpunct" // sentence-final punctuation: . ! ? and runs of them
)

// Token is one (tag, word) pair.
type Token struct {
	Tag  string
	Word string
}

// Tokenizer is the interface the vocabulary builder and the encoder consume.
// Each call to Tokenize returns a fresh, finite sequence. A tokenization
// failure is yielded as a *TokenizationError and ends the sequence.
type Tokenizer interface {
	Tokenize(text string) iter.Seq2[Token, error]
}

// TokenizationError reports malformed input.
type TokenizationError struct {
	Text   string
	Offset int
	Err    error
}

func (e *TokenizationError) Error() string {
	text := e.Text
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	return fmt.Sprintf("tokenize %q at byte %d: %v", text, e.Offset, e.Err)
}

func (e *TokenizationError) Unwrap() error { return e.Err }

// Collect drains a token sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Token, error]) ([]Token, error) {
	var tokens []Token
	for tok, err := range seq {
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
