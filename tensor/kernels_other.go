//go:build !amd64

package tensor

func init() {
	axpyKernel = axpyScalar
	dotKernel = dotScalar
}
