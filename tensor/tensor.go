package tensor

import (
	"fmt"

	"github.com/djeday123/chatcorpus/core"
)

type Shape = core.Shape

// Tensor is a dense row-major array of int64 token ids in host memory.
type Tensor struct {
	data    []int64
	shape   Shape
	strides core.Strides
}

// Zeros creates a zero-filled tensor; zero is the padding id.
func Zeros(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Tensor{
		data:    make([]int64, shape.NumElements()),
		shape:   shape.Clone(),
		strides: core.ContiguousStrides(shape),
	}, nil
}

func (t *Tensor) Shape() Shape     { return t.shape }
func (t *Tensor) NumElements() int { return len(t.data) }

// Set writes v at idx. It panics on a bad index.
func (t *Tensor) Set(v int64, idx ...int) {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("index %v has %d axes, tensor has %d", idx, len(idx), len(t.shape)))
	}
	for i, n := range idx {
		if n < 0 || n >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of range for axis %d of size %d", n, i, t.shape[i]))
		}
	}
	t.data[t.strides.Offset(idx)] = v
}

// Column returns a copy of column j of a 2D tensor.
func (t *Tensor) Column(j int) ([]int64, error) {
	if len(t.shape) != 2 {
		return nil, fmt.Errorf("Column requires 2D tensor, got %dD", len(t.shape))
	}
	if j < 0 || j >= t.shape[1] {
		return nil, fmt.Errorf("column %d out of range for %d columns", j, t.shape[1])
	}
	col := make([]int64, t.shape[0])
	for i := range col {
		col[i] = t.data[i*t.strides[0]+j]
	}
	return col, nil
}

// ToInt64Slice returns the backing slice in row-major order. It is not a copy.
func (t *Tensor) ToInt64Slice() []int64 { return t.data }

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=int64)", t.shape)
}
