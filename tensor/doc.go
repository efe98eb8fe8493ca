// Package tensor implements the reverse-mode automatic differentiation
// substrate used by the NS-CQA trainers. Tensors are dense row-major
// float64 matrices; recorded operations form a graph that Grad walks
// backwards. Backward passes are themselves expressed as recorded
// operations, so second-order gradients (MAML, Hessian-vector products)
// fall out of running Grad with createGraph enabled.
package tensor
