package core

import "fmt"

// Shape holds the size of each axis.
type Shape []int

// Strides holds the element step along each axis.
type Strides []int

// NumElements is the product of the axis sizes; an empty shape holds one element.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// Validate rejects negative dimensions.
func (s Shape) Validate() error {
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("shape %v: negative dimension %d at axis %d", []int(s), d, i)
		}
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprint([]int(s))
}

// ContiguousStrides returns row-major element strides for shape.
func ContiguousStrides(shape Shape) Strides {
	strides := make(Strides, len(shape))
	step := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = step
		step *= shape[i]
	}
	return strides
}

// Offset maps a multi-axis index to a position in the backing slice.
func (st Strides) Offset(idx []int) int {
	off := 0
	for i, v := range idx {
		off += v * st[i]
	}
	return off
}
