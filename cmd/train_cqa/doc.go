// Package main provides the training driver for the complex-question
// answering policy. It meta-trains the shared seq2seq initialization over
// sampled task batches, either with the two-step MAML path or with the
// trust-region step, and checkpoints whenever the evaluation reward
// improves.
package main
