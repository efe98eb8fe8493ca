//go:build amd64

package tensor

import "github.com/klauspost/cpuid/v2"

func init() {
	// The unrolled loops only pay off once the FMA units can retire the
	// independent accumulators in parallel.
	if cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3) {
		axpyKernel = axpyUnrolled
		dotKernel = dotUnrolled
	} else {
		axpyKernel = axpyScalar
		dotKernel = dotScalar
	}
}
