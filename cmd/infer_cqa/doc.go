// Package main provides inference over a trained checkpoint: it greedily
// decodes every annotated question, prints the generated action sequence
// and reports the mean reward.
package main
