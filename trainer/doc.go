// Package trainer provides the meta-learning orchestration: the
// REINFORCE-with-baseline inner loss, the one-step inner-loop adapter, the
// two-step MAML sampling loop and the Adam meta-update. The trust-region
// alternative lives in package trpo; MetaLearner satisfies its Policy
// interface.
package trainer
