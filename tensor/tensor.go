package tensor

import "fmt"
import "math"
import "math/rand"

// Tensor is a dense row-major float64 matrix. Scalars are 1x1 and vectors
// are degenerate matrices. A tensor participates in differentiation when
// any of the operation inputs that produced it does.
type Tensor struct {
	rows, cols int
	data       []float64

	grad   bool
	inputs []*Tensor
	back   func(g *Tensor) []*Tensor
}

// New returns a zero tensor of the given shape that does not require
// gradients.
func New(rows, cols int) *Tensor {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("tensor: invalid shape %dx%d", rows, cols))
	}
	return &Tensor{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// FromSlice wraps data as a rows x cols tensor. The slice is used directly,
// not copied.
func FromSlice(rows, cols int, data []float64) *Tensor {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("tensor: %dx%d needs %d values, have %d", rows, cols, rows*cols, len(data)))
	}
	return &Tensor{rows: rows, cols: cols, data: data}
}

// Scalar returns a 1x1 tensor holding v.
func Scalar(v float64) *Tensor {
	return FromSlice(1, 1, []float64{v})
}

// Row returns a 1xN tensor over data.
func Row(data ...float64) *Tensor {
	return FromSlice(1, len(data), data)
}

// Ones returns a tensor of the given shape filled with 1.
func Ones(rows, cols int) *Tensor {
	t := New(rows, cols)
	for i := range t.data {
		t.data[i] = 1
	}
	return t
}

// Param returns a gradient-tracked leaf tensor with small random weights
// drawn from rng, scaled by 1/sqrt(cols) fan-in.
func Param(rows, cols int, rng *rand.Rand) *Tensor {
	t := New(rows, cols)
	scale := 1.0
	if cols > 1 {
		scale = 1.0 / math.Sqrt(float64(cols))
	}
	for i := range t.data {
		t.data[i] = (rng.Float64()*2 - 1) * scale
	}
	t.grad = true
	return t
}

// Leaf marks the tensor as a gradient-tracked leaf and returns it.
func (t *Tensor) Leaf() *Tensor {
	t.grad = true
	return t
}

// Shape returns the row and column counts.
func (t *Tensor) Shape() (rows, cols int) { return t.rows, t.cols }

// Size returns the number of scalar elements.
func (t *Tensor) Size() int { return len(t.data) }

// RequiresGrad reports whether the tensor participates in differentiation.
func (t *Tensor) RequiresGrad() bool { return t.grad }

// At returns the element at row i, column j.
func (t *Tensor) At(i, j int) float64 { return t.data[i*t.cols+j] }

// Set assigns the element at row i, column j.
func (t *Tensor) Set(i, j int, v float64) { t.data[i*t.cols+j] = v }

// Data returns the backing slice. Mutating it on a non-leaf tensor
// invalidates recorded gradients.
func (t *Tensor) Data() []float64 { return t.data }

// Item returns the value of a scalar tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on %dx%d tensor", t.rows, t.cols))
	}
	return t.data[0]
}

// Detach returns a copy of the tensor severed from the recorded graph.
func (t *Tensor) Detach() *Tensor {
	out := New(t.rows, t.cols)
	copy(out.data, t.data)
	return out
}

// Clone returns a deep copy that is a fresh gradient-tracked leaf when the
// source tracks gradients. The copy never aliases the source storage.
func (t *Tensor) Clone() *Tensor {
	out := New(t.rows, t.cols)
	copy(out.data, t.data)
	out.grad = t.grad
	return out
}

func (t *Tensor) sameShape(o *Tensor) {
	if t.rows != o.rows || t.cols != o.cols {
		panic(fmt.Sprintf("tensor: shape mismatch %dx%d vs %dx%d", t.rows, t.cols, o.rows, o.cols))
	}
}

// operation wires the backward closure when any input tracks gradients.
func operation(out *Tensor, back func(g *Tensor) []*Tensor, inputs ...*Tensor) *Tensor {
	for _, in := range inputs {
		if in.grad {
			out.grad = true
			out.inputs = inputs
			out.back = back
			break
		}
	}
	return out
}
