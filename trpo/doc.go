// Package trpo implements the trust-region meta-optimization step:
// importance-sampled surrogate loss, KL constraint, Hessian-vector products
// by the Perlmutter double-backward trick, conjugate-gradient step
// direction and a backtracking line search that reverts on failure.
package trpo
