package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numericGrad estimates d out / d in by central differences.
func numericGrad(t *testing.T, f func() *Tensor, in *Tensor) []float64 {
	t.Helper()
	const h = 1e-6
	out := make([]float64, len(in.data))
	for i := range in.data {
		orig := in.data[i]
		in.data[i] = orig + h
		plus := f().Item()
		in.data[i] = orig - h
		minus := f().Item()
		in.data[i] = orig
		out[i] = (plus - minus) / (2 * h)
	}
	return out
}

func TestGradMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := Param(3, 4, rng)
	x := Param(1, 3, rng)
	b := Param(1, 4, rng)

	f := func() *Tensor {
		return x.MatMul(w).Add(b).Tanh().LogSoftmax().Sum()
	}

	grads, err := Grad(f(), []*Tensor{w, x, b}, false)
	require.NoError(t, err)

	for i, in := range []*Tensor{w, x, b} {
		want := numericGrad(t, f, in)
		for j := range want {
			assert.InDelta(t, want[j], grads[i].data[j], 1e-5, "input %d element %d", i, j)
		}
	}
}

func TestGradGatherAndPickRows(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	emb := Param(5, 3, rng)
	idx := []int{1, 4, 1}
	pick := []int{0, 2, 1}

	f := func() *Tensor {
		return emb.PickRows(idx).LogSoftmax().Gather(pick).Sum()
	}

	grads, err := Grad(f(), []*Tensor{emb}, false)
	require.NoError(t, err)
	want := numericGrad(t, f, emb)
	for j := range want {
		assert.InDelta(t, want[j], grads[0].data[j], 1e-5)
	}
	// row 3 is never picked, its gradient must be exactly zero
	for j := 0; j < 3; j++ {
		assert.Zero(t, grads[0].At(3, j))
	}
}

func TestGradUnusedInputIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := Param(2, 2, rng)
	unused := Param(2, 2, rng)

	grads, err := Grad(a.Mul(a).Sum(), []*Tensor{a, unused}, false)
	require.NoError(t, err)
	for _, v := range grads[1].data {
		assert.Zero(t, v)
	}
}

func TestGradNonScalarOutput(t *testing.T) {
	a := Param(2, 2, rand.New(rand.NewSource(4)))
	_, err := Grad(a.Mul(a), []*Tensor{a}, false)
	require.Error(t, err)
}

func TestGradSecondOrder(t *testing.T) {
	// y = sum(x^3), dy/dx = 3x^2, d/dx (dy/dx . v) = 6x*v
	x := FromSlice(1, 3, []float64{1, 2, 3}).Leaf()
	v := Row(0.5, -1, 2)

	y := x.Mul(x).Mul(x).Sum()
	first, err := Grad(y, []*Tensor{x}, true)
	require.NoError(t, err)
	for i, xv := range x.data {
		assert.InDelta(t, 3*xv*xv, first[0].data[i], 1e-12)
	}

	second, err := Grad(first[0].Dot(v), []*Tensor{x}, false)
	require.NoError(t, err)
	for i, xv := range x.data {
		assert.InDelta(t, 6*xv*v.data[i], second[0].data[i], 1e-12)
	}
}

func TestGradFirstOrderDetaches(t *testing.T) {
	x := FromSlice(1, 2, []float64{1, 2}).Leaf()
	g, err := Grad(x.Mul(x).Sum(), []*Tensor{x}, false)
	require.NoError(t, err)
	assert.False(t, g[0].RequiresGrad())

	g, err = Grad(x.Mul(x).Sum(), []*Tensor{x}, true)
	require.NoError(t, err)
	assert.True(t, g[0].RequiresGrad())
}

func TestGradThroughConcatAndSlices(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := Param(2, 3, rng)
	b := Param(1, 3, rng)

	f := func() *Tensor {
		cat := ConcatRows(a, b)
		return cat.RowSlice(1, 3).Exp().Sum()
	}
	grads, err := Grad(f(), []*Tensor{a, b}, false)
	require.NoError(t, err)
	for i, in := range []*Tensor{a, b} {
		want := numericGrad(t, f, in)
		for j := range want {
			assert.InDelta(t, want[j], grads[i].data[j], 1e-5)
		}
	}
}
