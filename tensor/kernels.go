package tensor

// Inner float kernels behind the tensor operations. The amd64 build picks
// unrolled variants when the CPU reports the wide vector units, the generic
// build keeps the scalar loops.

var axpyKernel func(dst []float64, alpha float64, x []float64)
var dotKernel func(a, b []float64) float64

func axpyScalar(dst []float64, alpha float64, x []float64) {
	for i := range dst {
		dst[i] += alpha * x[i]
	}
}

func dotScalar(a, b []float64) (s float64) {
	for i := range a {
		s += a[i] * b[i]
	}
	return
}

func axpyUnrolled(dst []float64, alpha float64, x []float64) {
	n := len(dst) &^ 3
	for i := 0; i < n; i += 4 {
		dst[i] += alpha * x[i]
		dst[i+1] += alpha * x[i+1]
		dst[i+2] += alpha * x[i+2]
		dst[i+3] += alpha * x[i+3]
	}
	for i := n; i < len(dst); i++ {
		dst[i] += alpha * x[i]
	}
}

func dotUnrolled(a, b []float64) float64 {
	var s0, s1, s2, s3 float64
	n := len(a) &^ 3
	for i := 0; i < n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	s := s0 + s1 + s2 + s3
	for i := n; i < len(a); i++ {
		s += a[i] * b[i]
	}
	return s
}

// VecAxpy computes dst += alpha * x.
func VecAxpy(dst []float64, alpha float64, x []float64) {
	axpyKernel(dst, alpha, x)
}

// VecDot returns the inner product of a and b.
func VecDot(a, b []float64) float64 {
	return dotKernel(a, b)
}
