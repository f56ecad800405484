package dataset

import (
	"slices"

	"github.com/djeday123/chatcorpus/tokenizer"
	"github.com/djeday123/chatcorpus/vocab"
)

// DefaultMaxLen is the default per-sentence word limit.
const DefaultMaxLen = 25

// Encoder turns raw lines into id sequences against a fixed vocabulary.
type Encoder struct {
	Vocab     *vocab.Vocabulary
	Tokenizer tokenizer.Tokenizer
	MaxLen    int // <= 0 disables truncation

	norm *vocab.Normalizer
}

func NewEncoder(v *vocab.Vocabulary, tok tokenizer.Tokenizer, maxLen int) *Encoder {
	return &Encoder{Vocab: v, Tokenizer: tok, MaxLen: maxLen, norm: vocab.NewNormalizer()}
}

// Encode maps the first sentence of text to ids, at most MaxLen of them.
// Sentence-final punctuation is kept and counts toward MaxLen. Words missing
// from the vocabulary become <unknown>. ok is false when text is empty or
// yields no tokens; callers skip the sample.
func (e *Encoder) Encode(text string) (ids []int64, ok bool, err error) {
	if text == "" {
		return nil, false, nil
	}
	if e.norm == nil {
		e.norm = vocab.NewNormalizer()
	}

	for tok, err := range e.Tokenizer.Tokenize(text) {
		if err != nil {
			return nil, false, err
		}
		ids = append(ids, e.Vocab.Lookup(e.norm.Normalize(tok.Word)))
		if tok.Tag == tokenizer.TagEndPunct {
			break
		}
		if e.MaxLen > 0 && len(ids) >= e.MaxLen {
			break
		}
	}
	if len(ids) == 0 {
		return nil, false, nil
	}
	return ids, true, nil
}

// Example encodes one (input, target) pair. The input ids are reversed and
// the target is framed by <go> and <eos>, which do not count toward MaxLen.
// ok is false when the target is empty or either side encodes to nothing.
func (e *Encoder) Example(input, target string) (ex Example, ok bool, err error) {
	if target == "" {
		return Example{}, false, nil
	}

	in, ok, err := e.Encode(input)
	if err != nil || !ok {
		return Example{}, false, err
	}
	out, ok, err := e.Encode(target)
	if err != nil || !ok {
		return Example{}, false, err
	}

	slices.Reverse(in)

	framed := make([]int64, 0, len(out)+2)
	framed = append(framed, e.Vocab.Go())
	framed = append(framed, out...)
	framed = append(framed, e.Vocab.EOS())

	return Example{Input: in, Target: framed}, true, nil
}
