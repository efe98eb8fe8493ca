// Package seq2seq implements the encoder-decoder policy network. Every
// forward entry point takes an explicit parameter snapshot, so adapted
// weight sets produced by the inner loop run through the same code path as
// the shared initial parameters.
package seq2seq
