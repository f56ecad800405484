package dataset

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/exp/rand"
)

var (
	ErrStoreBorrowed    = errors.New("example store is borrowed by an active batcher")
	ErrInvalidExample   = errors.New("invalid example")
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)

// Example is one encoder/decoder training pair.
type Example struct {
	Input  []int64 `cbor:"input"`  // reversed input line, at least one id
	Target []int64 `cbor:"target"` // <go> ... <eos>, at least two ids
}

func (ex Example) validate() error {
	if len(ex.Input) < 1 {
		return fmt.Errorf("%w: empty input", ErrInvalidExample)
	}
	if len(ex.Target) < 2 {
		return fmt.Errorf("%w: target has %d ids, need at least 2", ErrInvalidExample, len(ex.Target))
	}
	return nil
}

// Store holds examples in order. It grows by Append and is reordered by
// Shuffle; both are refused while a Batcher borrows the store.
type Store struct {
	examples []Example
	borrowed bool
}

func NewStore(examples ...Example) (*Store, error) {
	s := &Store{}
	for _, ex := range examples {
		if err := s.Append(ex); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Len() int { return len(s.examples) }

// At returns the i-th example. The slices are shared with the store and must
// not be modified.
func (s *Store) At(i int) Example { return s.examples[i] }

// Examples returns a copy of the store order.
func (s *Store) Examples() []Example {
	out := make([]Example, len(s.examples))
	copy(out, s.examples)
	return out
}

// Append validates ex and stores a copy of it.
func (s *Store) Append(ex Example) error {
	if s.borrowed {
		return ErrStoreBorrowed
	}
	if err := ex.validate(); err != nil {
		return err
	}
	s.examples = append(s.examples, Example{
		Input:  slices.Clone(ex.Input),
		Target: slices.Clone(ex.Target),
	})
	return nil
}

// Ingest encodes one (input, target) pair and appends it. added is false when
// the pair was dropped.
func (s *Store) Ingest(enc *Encoder, input, target string) (added bool, err error) {
	if s.borrowed {
		return false, ErrStoreBorrowed
	}
	ex, ok, err := enc.Example(input, target)
	if err != nil || !ok {
		return false, err
	}
	return true, s.Append(ex)
}

// Shuffle permutes the examples uniformly at random. A nil r uses a
// time-seeded source; pass a seeded *rand.Rand for reproducible order.
func (s *Store) Shuffle(r *rand.Rand) error {
	if s.borrowed {
		return ErrStoreBorrowed
	}
	if r == nil {
		r = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	r.Shuffle(len(s.examples), func(i, j int) {
		s.examples[i], s.examples[j] = s.examples[j], s.examples[i]
	})
	return nil
}

// Batches borrows the store and returns a cursor over consecutive windows of
// up to size examples. The store is released when the cursor is exhausted or
// closed.
func (s *Store) Batches(size int) (*Batcher, error) {
	if size < 1 {
		return nil, ErrInvalidBatchSize
	}
	if s.borrowed {
		return nil, ErrStoreBorrowed
	}
	s.borrowed = true
	return &Batcher{store: s, size: size}, nil
}
