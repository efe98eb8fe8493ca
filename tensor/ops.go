package tensor

import "fmt"
import "math"

// Add returns t + o elementwise.
func (t *Tensor) Add(o *Tensor) *Tensor {
	t.sameShape(o)
	out := New(t.rows, t.cols)
	copy(out.data, t.data)
	VecAxpy(out.data, 1, o.data)
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g, g}
	}, t, o)
}

// Sub returns t - o elementwise.
func (t *Tensor) Sub(o *Tensor) *Tensor {
	t.sameShape(o)
	out := New(t.rows, t.cols)
	copy(out.data, t.data)
	VecAxpy(out.data, -1, o.data)
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g, g.Neg()}
	}, t, o)
}

// Mul returns t * o elementwise.
func (t *Tensor) Mul(o *Tensor) *Tensor {
	t.sameShape(o)
	out := New(t.rows, t.cols)
	for i := range out.data {
		out.data[i] = t.data[i] * o.data[i]
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Mul(o), g.Mul(t)}
	}, t, o)
}

// Div returns t / o elementwise.
func (t *Tensor) Div(o *Tensor) *Tensor {
	t.sameShape(o)
	out := New(t.rows, t.cols)
	for i := range out.data {
		out.data[i] = t.data[i] / o.data[i]
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Div(o), g.Mul(t).Div(o.Mul(o)).Neg()}
	}, t, o)
}

// Scale returns t * c.
func (t *Tensor) Scale(c float64) *Tensor {
	out := New(t.rows, t.cols)
	for i := range out.data {
		out.data[i] = t.data[i] * c
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Scale(c)}
	}, t)
}

// Neg returns -t.
func (t *Tensor) Neg() *Tensor {
	return t.Scale(-1)
}

// T returns the transpose of t.
func (t *Tensor) T() *Tensor {
	out := New(t.cols, t.rows)
	for i := 0; i < t.rows; i++ {
		for j := 0; j < t.cols; j++ {
			out.data[j*t.rows+i] = t.data[i*t.cols+j]
		}
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.T()}
	}, t)
}

// MatMul returns the matrix product t (m x k) by o (k x n).
func (t *Tensor) MatMul(o *Tensor) *Tensor {
	if t.cols != o.rows {
		panic(fmt.Sprintf("tensor: matmul %dx%d by %dx%d", t.rows, t.cols, o.rows, o.cols))
	}
	out := New(t.rows, o.cols)
	for i := 0; i < t.rows; i++ {
		dst := out.data[i*o.cols : (i+1)*o.cols]
		for k := 0; k < t.cols; k++ {
			VecAxpy(dst, t.data[i*t.cols+k], o.data[k*o.cols:(k+1)*o.cols])
		}
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.MatMul(o.T()), t.T().MatMul(g)}
	}, t, o)
}

// Exp returns e^t elementwise.
func (t *Tensor) Exp() *Tensor {
	out := New(t.rows, t.cols)
	for i := range out.data {
		out.data[i] = math.Exp(t.data[i])
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Mul(out)}
	}, t)
}

// Log returns the natural logarithm of t elementwise.
func (t *Tensor) Log() *Tensor {
	out := New(t.rows, t.cols)
	for i := range out.data {
		out.data[i] = math.Log(t.data[i])
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Div(t)}
	}, t)
}

// Tanh returns tanh(t) elementwise.
func (t *Tensor) Tanh() *Tensor {
	out := New(t.rows, t.cols)
	for i := range out.data {
		out.data[i] = math.Tanh(t.data[i])
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Mul(Ones(out.rows, out.cols).Sub(out.Mul(out)))}
	}, t)
}

// Sigmoid returns 1/(1+e^-t) elementwise.
func (t *Tensor) Sigmoid() *Tensor {
	out := New(t.rows, t.cols)
	for i := range out.data {
		out.data[i] = 1 / (1 + math.Exp(-t.data[i]))
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Mul(out.Mul(Ones(out.rows, out.cols).Sub(out)))}
	}, t)
}

// Sum reduces t to a 1x1 scalar.
func (t *Tensor) Sum() *Tensor {
	var s float64
	for _, v := range t.data {
		s += v
	}
	out := Scalar(s)
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.ScalarExpand(t.rows, t.cols)}
	}, t)
}

// Mean reduces t to the 1x1 mean of its elements.
func (t *Tensor) Mean() *Tensor {
	return t.Sum().Scale(1 / float64(len(t.data)))
}

// Dot returns the inner product of two equally shaped tensors as a scalar.
func (t *Tensor) Dot(o *Tensor) *Tensor {
	return t.Mul(o).Sum()
}

// ScalarExpand broadcasts a 1x1 tensor to the given shape.
func (t *Tensor) ScalarExpand(rows, cols int) *Tensor {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: ScalarExpand on %dx%d tensor", t.rows, t.cols))
	}
	out := New(rows, cols)
	for i := range out.data {
		out.data[i] = t.data[0]
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Sum()}
	}, t)
}

// SumRows reduces an NxV tensor to Nx1 row sums.
func (t *Tensor) SumRows() *Tensor {
	out := New(t.rows, 1)
	for i := 0; i < t.rows; i++ {
		var s float64
		for j := 0; j < t.cols; j++ {
			s += t.data[i*t.cols+j]
		}
		out.data[i] = s
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.BroadcastCols(t.cols)}
	}, t)
}

// BroadcastCols repeats an Nx1 column tensor across cols columns.
func (t *Tensor) BroadcastCols(cols int) *Tensor {
	if t.cols != 1 {
		panic(fmt.Sprintf("tensor: BroadcastCols on %dx%d tensor", t.rows, t.cols))
	}
	out := New(t.rows, cols)
	for i := 0; i < t.rows; i++ {
		for j := 0; j < cols; j++ {
			out.data[i*cols+j] = t.data[i]
		}
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.SumRows()}
	}, t)
}

// LogSoftmax computes log(softmax) over each row.
func (t *Tensor) LogSoftmax() *Tensor {
	out := New(t.rows, t.cols)
	for i := 0; i < t.rows; i++ {
		row := t.data[i*t.cols : (i+1)*t.cols]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(v - max)
		}
		lse := max + math.Log(sum)
		for j, v := range row {
			out.data[i*t.cols+j] = v - lse
		}
	}
	return operation(out, func(g *Tensor) []*Tensor {
		softmax := out.Exp()
		return []*Tensor{g.Sub(softmax.Mul(g.SumRows().BroadcastCols(t.cols)))}
	}, t)
}

// Gather picks one column per row: out[i] = t[i, idx[i]], shaped Nx1.
func (t *Tensor) Gather(idx []int) *Tensor {
	if len(idx) != t.rows {
		panic(fmt.Sprintf("tensor: gather needs %d indices, have %d", t.rows, len(idx)))
	}
	out := New(t.rows, 1)
	for i, j := range idx {
		out.data[i] = t.data[i*t.cols+j]
	}
	cols := t.cols
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Scatter(idx, cols)}
	}, t)
}

// Scatter spreads an Nx1 tensor into an NxV tensor at idx per row, the
// inverse of Gather.
func (t *Tensor) Scatter(idx []int, cols int) *Tensor {
	if t.cols != 1 || len(idx) != t.rows {
		panic(fmt.Sprintf("tensor: scatter on %dx%d with %d indices", t.rows, t.cols, len(idx)))
	}
	out := New(t.rows, cols)
	for i, j := range idx {
		out.data[i*cols+j] = t.data[i]
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Gather(idx)}
	}, t)
}

// PickRows selects rows of t by index, accumulating gradients back into the
// source rows. This is the embedding lookup.
func (t *Tensor) PickRows(idx []int) *Tensor {
	out := New(len(idx), t.cols)
	for i, r := range idx {
		copy(out.data[i*t.cols:(i+1)*t.cols], t.data[r*t.cols:(r+1)*t.cols])
	}
	rows := t.rows
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.ScatterRows(idx, rows)}
	}, t)
}

// ScatterRows accumulates the rows of t into a rows x cols tensor at the
// given row indices, the adjoint of PickRows. Repeated indices add.
func (t *Tensor) ScatterRows(idx []int, rows int) *Tensor {
	if len(idx) != t.rows {
		panic(fmt.Sprintf("tensor: scatter rows needs %d indices, have %d", t.rows, len(idx)))
	}
	out := New(rows, t.cols)
	for i, r := range idx {
		VecAxpy(out.data[r*t.cols:(r+1)*t.cols], 1, t.data[i*t.cols:(i+1)*t.cols])
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.PickRows(idx)}
	}, t)
}

// RowSlice returns rows [from, to) of t.
func (t *Tensor) RowSlice(from, to int) *Tensor {
	if from < 0 || to > t.rows || from >= to {
		panic(fmt.Sprintf("tensor: row slice [%d,%d) of %d rows", from, to, t.rows))
	}
	out := New(to-from, t.cols)
	copy(out.data, t.data[from*t.cols:to*t.cols])
	rows := t.rows
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.PadRows(from, rows-to)}
	}, t)
}

// PadRows surrounds t with `before` zero rows above and `after` below.
func (t *Tensor) PadRows(before, after int) *Tensor {
	out := New(before+t.rows+after, t.cols)
	copy(out.data[before*t.cols:], t.data)
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.RowSlice(before, before+t.rows)}
	}, t)
}

// Reshape reinterprets t with a new shape of the same size.
func (t *Tensor) Reshape(rows, cols int) *Tensor {
	if rows*cols != len(t.data) {
		panic(fmt.Sprintf("tensor: reshape %dx%d to %dx%d", t.rows, t.cols, rows, cols))
	}
	out := New(rows, cols)
	copy(out.data, t.data)
	or, oc := t.rows, t.cols
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.Reshape(or, oc)}
	}, t)
}

// ConcatRows stacks tensors with equal column counts on top of each other.
func ConcatRows(ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("tensor: concat of nothing")
	}
	cols := ts[0].cols
	rows := 0
	for _, t := range ts {
		if t.cols != cols {
			panic(fmt.Sprintf("tensor: concat cols %d vs %d", t.cols, cols))
		}
		rows += t.rows
	}
	out := New(rows, cols)
	off := 0
	for _, t := range ts {
		copy(out.data[off*cols:], t.data)
		off += t.rows
	}
	return operation(out, func(g *Tensor) []*Tensor {
		gs := make([]*Tensor, len(ts))
		off := 0
		for i, t := range ts {
			gs[i] = g.RowSlice(off, off+t.rows)
			off += t.rows
		}
		return gs
	}, ts...)
}

// ConcatCols joins tensors with equal row counts side by side.
func ConcatCols(ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("tensor: concat of nothing")
	}
	rows := ts[0].rows
	cols := 0
	for _, t := range ts {
		if t.rows != rows {
			panic(fmt.Sprintf("tensor: concat rows %d vs %d", t.rows, rows))
		}
		cols += t.cols
	}
	out := New(rows, cols)
	off := 0
	for _, t := range ts {
		for i := 0; i < rows; i++ {
			copy(out.data[i*cols+off:i*cols+off+t.cols], t.data[i*t.cols:(i+1)*t.cols])
		}
		off += t.cols
	}
	return operation(out, func(g *Tensor) []*Tensor {
		gs := make([]*Tensor, len(ts))
		off := 0
		for i, t := range ts {
			gs[i] = g.colSlice(off, off+t.cols)
			off += t.cols
		}
		return gs
	}, ts...)
}

func (t *Tensor) colSlice(from, to int) *Tensor {
	out := New(t.rows, to-from)
	for i := 0; i < t.rows; i++ {
		copy(out.data[i*(to-from):], t.data[i*t.cols+from:i*t.cols+to])
	}
	cols := t.cols
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.padCols(from, cols - to)}
	}, t)
}

func (t *Tensor) padCols(before, after int) *Tensor {
	cols := before + t.cols + after
	out := New(t.rows, cols)
	for i := 0; i < t.rows; i++ {
		copy(out.data[i*cols+before:], t.data[i*t.cols:(i+1)*t.cols])
	}
	return operation(out, func(g *Tensor) []*Tensor {
		return []*Tensor{g.colSlice(before, before+t.cols)}
	}, t)
}

// FlattenColumn concatenates tensors into a single Nx1 column in order.
func FlattenColumn(ts []*Tensor) *Tensor {
	flats := make([]*Tensor, len(ts))
	for i, t := range ts {
		flats[i] = t.Reshape(len(t.data), 1)
	}
	return ConcatRows(flats...)
}
