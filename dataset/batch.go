package dataset

import (
	"fmt"
	"iter"

	"github.com/djeday123/chatcorpus/tensor"
	"github.com/djeday123/chatcorpus/vocab"
)

// Padding selects where a shorter sequence sits in its column.
type Padding int

const (
	// PadLeft right-aligns the sequence: padding fills the leading rows and
	// the last id lands in the last row.
	PadLeft Padding = iota
	// PadRight left-aligns the sequence: ids start at row 0 and padding
	// fills the trailing rows.
	PadRight
)

func (p Padding) String() string {
	switch p {
	case PadLeft:
		return "left"
	case PadRight:
		return "right"
	default:
		return fmt.Sprintf("padding(%d)", int(p))
	}
}

// Role names one of the three batch tensors.
type Role int

const (
	EncoderInput Role = iota
	DecoderInput
	DecoderTarget
)

func (r Role) String() string {
	switch r {
	case EncoderInput:
		return "encoder_input"
	case DecoderInput:
		return "decoder_input"
	case DecoderTarget:
		return "decoder_target"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Padding is the policy for the role. Encoder inputs are reversed, so they
// are right-aligned to keep the sentence start next to the boundary.
func (r Role) Padding() Padding {
	if r == EncoderInput {
		return PadLeft
	}
	return PadRight
}

// Batch holds three (time, batch) int64 tensors; column j is example j of
// the window. A window of one example still yields (rows, 1) tensors.
//
//	EncoderInput:  (maxInputLen, n)
//	DecoderInput:  (maxTargetLen-1, n), target without its last id
//	DecoderTarget: (maxTargetLen-1, n), target without its first id
type Batch struct {
	EncoderInput  *tensor.Tensor
	DecoderInput  *tensor.Tensor
	DecoderTarget *tensor.Tensor

	Offset int // store index of the first example
	Size   int // number of examples
}

// Tensor returns the tensor for a role.
func (b *Batch) Tensor(r Role) *tensor.Tensor {
	switch r {
	case EncoderInput:
		return b.EncoderInput
	case DecoderInput:
		return b.DecoderInput
	case DecoderTarget:
		return b.DecoderTarget
	default:
		return nil
	}
}

// NewBatch packs examples into the three padded tensors.
func NewBatch(examples []Example) (*Batch, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("%w: empty window", ErrInvalidExample)
	}

	inputs := make([][]int64, len(examples))
	decIn := make([][]int64, len(examples))
	decOut := make([][]int64, len(examples))
	maxInput, maxTarget := 0, 0
	for i, ex := range examples {
		if err := ex.validate(); err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		inputs[i] = ex.Input
		decIn[i] = ex.Target[:len(ex.Target)-1]
		decOut[i] = ex.Target[1:]
		maxInput = max(maxInput, len(ex.Input))
		maxTarget = max(maxTarget, len(ex.Target))
	}

	b := &Batch{Size: len(examples)}
	var err error
	if b.EncoderInput, err = pack(inputs, maxInput, EncoderInput.Padding()); err != nil {
		return nil, err
	}
	if b.DecoderInput, err = pack(decIn, maxTarget-1, DecoderInput.Padding()); err != nil {
		return nil, err
	}
	if b.DecoderTarget, err = pack(decOut, maxTarget-1, DecoderTarget.Padding()); err != nil {
		return nil, err
	}
	return b, nil
}

// pack lays sequences out as columns of a zero-padded (rows, len(seqs)) tensor.
func pack(seqs [][]int64, rows int, pad Padding) (*tensor.Tensor, error) {
	t, err := tensor.Zeros(tensor.Shape{rows, len(seqs)})
	if err != nil {
		return nil, err
	}
	for j, seq := range seqs {
		if len(seq) > rows {
			return nil, fmt.Errorf("sequence of %d ids does not fit %d rows", len(seq), rows)
		}
		start := 0
		if pad == PadLeft {
			start = rows - len(seq)
		}
		for i, id := range seq {
			t.Set(id, start+i, j)
		}
	}
	return t, nil
}

// Unpad strips padding from a column produced with the given policy.
func Unpad(col []int64, pad Padding) []int64 {
	switch pad {
	case PadLeft:
		i := 0
		for i < len(col) && col[i] == vocab.PadID {
			i++
		}
		return col[i:]
	default:
		n := len(col)
		for n > 0 && col[n-1] == vocab.PadID {
			n--
		}
		return col[:n]
	}
}

// Batcher is a cursor over consecutive, non-overlapping windows of a store.
// It borrows the store until exhausted or closed.
type Batcher struct {
	store  *Store
	size   int
	cursor int
	done   bool
}

// Next returns the next window. ok is false once the store is exhausted.
func (b *Batcher) Next() (batch *Batch, ok bool) {
	if b.done {
		return nil, false
	}

	end := min(b.cursor+b.size, b.store.Len())
	if end <= b.cursor {
		b.Close()
		return nil, false
	}

	batch, err := NewBatch(b.store.examples[b.cursor:end])
	if err != nil {
		// the store only accepts validated examples
		panic(err)
	}
	batch.Offset = b.cursor
	b.cursor = end
	return batch, true
}

// Remaining is the number of windows left.
func (b *Batcher) Remaining() int {
	if b.done {
		return 0
	}
	left := b.store.Len() - b.cursor
	return (left + b.size - 1) / b.size
}

// Close releases the store. Further calls to Next report exhaustion.
func (b *Batcher) Close() {
	if !b.done {
		b.done = true
		b.store.borrowed = false
	}
}

// All yields the remaining windows and closes the batcher when done or when
// the caller stops early.
func (b *Batcher) All() iter.Seq[*Batch] {
	return func(yield func(*Batch) bool) {
		defer b.Close()
		for {
			batch, ok := b.Next()
			if !ok || !yield(batch) {
				return
			}
		}
	}
}
