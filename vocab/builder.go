package vocab

import (
	"cmp"
	"errors"
	"iter"
	"log/slog"

	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/djeday123/chatcorpus/logutil"
	"github.com/djeday123/chatcorpus/tokenizer"
)

// Normalizer lowercases words the same way for building and encoding. It
// keeps one Caser and is not safe for concurrent use.
type Normalizer struct {
	lower cases.Caser
}

func NewNormalizer() *Normalizer {
	return &Normalizer{lower: cases.Lower(language.Und)}
}

func (n *Normalizer) Normalize(s string) string {
	return n.lower.String(s)
}

// Frequencies counts lowercase words and remembers the order they were first seen.
type Frequencies struct {
	counts map[string]int
	order  []string
	norm   *Normalizer
}

func NewFrequencies() *Frequencies {
	return &Frequencies{counts: make(map[string]int), norm: NewNormalizer()}
}

func (f *Frequencies) Add(word string) {
	if _, ok := f.counts[word]; !ok {
		f.order = append(f.order, word)
	}
	f.counts[word]++
}

func (f *Frequencies) Count(word string) int { return f.counts[word] }

// Distinct is the number of distinct words seen.
func (f *Frequencies) Distinct() int { return len(f.order) }

// AddLine tokenizes a line and counts every lowercased token. On a
// tokenization error nothing from the line is counted.
func (f *Frequencies) AddLine(tok tokenizer.Tokenizer, line string) error {
	tokens, err := tokenizer.Collect(tok.Tokenize(line))
	if err != nil {
		return err
	}
	for _, t := range tokens {
		f.Add(f.norm.Normalize(t.Word))
	}
	return nil
}

type ranked struct {
	word  string
	count int
	seen  int
}

// byFrequency orders words by descending count; ties go to the word seen first.
func byFrequency(a, b ranked) int {
	if c := cmp.Compare(b.count, a.count); c != 0 {
		return c
	}
	return cmp.Compare(a.seen, b.seen)
}

// Ranked yields distinct words by descending frequency, ties in first-seen order.
func (f *Frequencies) Ranked() iter.Seq[string] {
	return func(yield func(string) bool) {
		q := pq.NewWith(byFrequency)
		for i, w := range f.order {
			q.Enqueue(ranked{word: w, count: f.counts[w], seen: i})
		}
		for !q.Empty() {
			r, _ := q.Dequeue()
			if !yield(r.word) {
				return
			}
		}
	}
}

// Vocabulary assigns ids in rank order after the reserved tokens. When
// capacity > 0, assignment stops once the vocabulary holds capacity entries,
// reserved tokens included; capacity <= 0 keeps every word.
func (f *Frequencies) Vocabulary(capacity int) *Vocabulary {
	hint := f.Distinct() + int(numSpecial)
	if capacity > 0 {
		hint = min(hint, max(capacity, int(numSpecial)))
	}
	v := newVocabulary(hint)
	for w := range f.Ranked() {
		if capacity > 0 && v.Len() >= capacity {
			break
		}
		v.add(w)
	}
	return v
}

// BuildStats summarises one vocabulary build.
type BuildStats struct {
	Lines    int // lines read
	Skipped  int // lines dropped on tokenization errors
	Distinct int // distinct words counted
}

type options struct {
	progress func(lines int)
	every    int
}

type Option func(*options)

// WithProgress calls fn with the number of lines processed every n lines.
func WithProgress(n int, fn func(lines int)) Option {
	return func(o *options) {
		o.every = n
		o.progress = fn
	}
}

// Build counts every line and returns the capped vocabulary. Lines the
// tokenizer rejects are skipped and counted in BuildStats.Skipped. The
// frequency table is discarded once ids are assigned.
func Build(lines iter.Seq[string], tok tokenizer.Tokenizer, capacity int, opts ...Option) (*Vocabulary, BuildStats) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var stats BuildStats
	freq := NewFrequencies()
	for line := range lines {
		stats.Lines++
		if err := freq.AddLine(tok, line); err != nil {
			stats.Skipped++
			var terr *tokenizer.TokenizationError
			if errors.As(err, &terr) {
				logutil.Trace("skipping line", logutil.Stage("vocabulary"), "offset", terr.Offset, "error", terr.Err)
			}
		}
		if o.progress != nil && o.every > 0 && stats.Lines%o.every == 0 {
			o.progress(stats.Lines)
		}
	}
	stats.Distinct = freq.Distinct()

	v := freq.Vocabulary(capacity)
	if stats.Skipped > 0 {
		slog.Warn("vocabulary build skipped malformed lines", logutil.Stage("vocabulary"), "skipped", stats.Skipped, "lines", stats.Lines)
	}
	slog.Debug("vocabulary built", "lines", stats.Lines, "distinct", stats.Distinct, "size", v.Len(), "capacity", capacity)
	return v, stats
}
