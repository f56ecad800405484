package vocab

import (
	"errors"
	"fmt"
	"strings"
)

// Special identifies one of the reserved tokens every vocabulary carries.
type Special int

const (
	SpecialGo Special = iota
	SpecialEOS
	SpecialUnknown

	numSpecial
)

// PadID is the padding sentinel. No word is ever assigned id 0.
const PadID int64 = 0

var specialWords = [numSpecial]string{
	SpecialGo:      "<go>",
	SpecialEOS:     "<eos>",
	SpecialUnknown: "<unknown>",
}

func (s Special) String() string {
	if s >= 0 && s < numSpecial {
		return specialWords[s]
	}
	return fmt.Sprintf("special(%d)", int(s))
}

var ErrInvalidSnapshot = errors.New("invalid vocabulary snapshot")

// Vocabulary maps lowercase words to dense ids starting at 1.
//
// Invariants:
//   - ids 1, 2 and 3 are <go>, <eos> and <unknown>, in that order
//   - id2word[word2id[w]] == w for every registered w
//   - ids are dense: 1..Len()
//
// A Vocabulary is immutable once built and safe for concurrent reads.
type Vocabulary struct {
	word2id map[string]int64
	id2word map[int64]string
	special [numSpecial]int64
}

// newVocabulary returns a vocabulary holding only the reserved tokens.
func newVocabulary(sizeHint int) *Vocabulary {
	v := &Vocabulary{
		word2id: make(map[string]int64, sizeHint),
		id2word: make(map[int64]string, sizeHint),
	}
	for s := range numSpecial {
		v.special[s] = v.add(specialWords[s])
	}
	return v
}

func (v *Vocabulary) add(word string) int64 {
	if id, ok := v.word2id[word]; ok {
		return id
	}
	id := int64(len(v.word2id)) + 1
	v.word2id[word] = id
	v.id2word[id] = word
	return id
}

// Len is the number of registered entries, reserved tokens included.
func (v *Vocabulary) Len() int { return len(v.word2id) }

// ID returns the id registered for word.
func (v *Vocabulary) ID(word string) (int64, bool) {
	id, ok := v.word2id[word]
	return id, ok
}

// Lookup returns the id for word, or the <unknown> id on a miss.
func (v *Vocabulary) Lookup(word string) int64 {
	if id, ok := v.word2id[word]; ok {
		return id
	}
	return v.special[SpecialUnknown]
}

// Word returns the word registered under id.
func (v *Vocabulary) Word(id int64) (string, bool) {
	w, ok := v.id2word[id]
	return w, ok
}

// Special returns the id of a reserved token.
func (v *Vocabulary) Special(s Special) int64 { return v.special[s] }

func (v *Vocabulary) Go() int64      { return v.special[SpecialGo] }
func (v *Vocabulary) EOS() int64     { return v.special[SpecialEOS] }
func (v *Vocabulary) Unknown() int64 { return v.special[SpecialUnknown] }

// Words lists all entries in id order.
func (v *Vocabulary) Words() []string {
	words := make([]string, v.Len())
	for id, w := range v.id2word {
		words[id-1] = w
	}
	return words
}

// Top returns up to n corpus words, most frequent first.
func (v *Vocabulary) Top(n int) []string {
	words := v.Words()[numSpecial:]
	if n >= 0 && n < len(words) {
		words = words[:n]
	}
	return words
}

// Decode maps ids back to words joined by spaces. Padding is skipped and
// unregistered ids render as <unknown>.
func (v *Vocabulary) Decode(ids []int64) string {
	var sb strings.Builder
	for _, id := range ids {
		if id == PadID {
			continue
		}
		w, ok := v.id2word[id]
		if !ok {
			w = specialWords[SpecialUnknown]
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w)
	}
	return sb.String()
}

// Snapshot is the persisted form of a Vocabulary.
type Snapshot struct {
	Word2ID      map[string]int64 `cbor:"word2id"`
	ID2Word      map[int64]string `cbor:"id2word"`
	WordsCount   int              `cbor:"words_count"`
	GoToken      int64            `cbor:"go_token"`
	EOSToken     int64            `cbor:"eos_token"`
	UnknownToken int64            `cbor:"unknown_token"`
}

// Snapshot copies the vocabulary into its persisted form.
func (v *Vocabulary) Snapshot() *Snapshot {
	s := &Snapshot{
		Word2ID:      make(map[string]int64, len(v.word2id)),
		ID2Word:      make(map[int64]string, len(v.id2word)),
		WordsCount:   v.Len(),
		GoToken:      v.Go(),
		EOSToken:     v.EOS(),
		UnknownToken: v.Unknown(),
	}
	for w, id := range v.word2id {
		s.Word2ID[w] = id
	}
	for id, w := range v.id2word {
		s.ID2Word[id] = w
	}
	return s
}

// FromSnapshot rebuilds a Vocabulary, checking every invariant.
func FromSnapshot(s *Snapshot) (*Vocabulary, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidSnapshot)
	}
	if s.WordsCount != len(s.Word2ID) || s.WordsCount != len(s.ID2Word) {
		return nil, fmt.Errorf("%w: words count %d, word2id %d, id2word %d",
			ErrInvalidSnapshot, s.WordsCount, len(s.Word2ID), len(s.ID2Word))
	}

	ids := [numSpecial]int64{s.GoToken, s.EOSToken, s.UnknownToken}
	for sp, id := range ids {
		if want := int64(sp) + 1; id != want {
			return nil, fmt.Errorf("%w: %s has id %d, want %d", ErrInvalidSnapshot, Special(sp), id, want)
		}
	}

	v := &Vocabulary{
		word2id: make(map[string]int64, s.WordsCount),
		id2word: make(map[int64]string, s.WordsCount),
		special: ids,
	}
	for w, id := range s.Word2ID {
		if id < 1 || id > int64(s.WordsCount) {
			return nil, fmt.Errorf("%w: id %d for %q out of range", ErrInvalidSnapshot, id, w)
		}
		if s.ID2Word[id] != w {
			return nil, fmt.Errorf("%w: id %d maps back to %q, not %q", ErrInvalidSnapshot, id, s.ID2Word[id], w)
		}
		v.word2id[w] = id
		v.id2word[id] = w
	}
	for sp, id := range ids {
		if v.id2word[id] != specialWords[sp] {
			return nil, fmt.Errorf("%w: id %d is %q, want %q", ErrInvalidSnapshot, id, v.id2word[id], specialWords[sp])
		}
	}
	return v, nil
}
