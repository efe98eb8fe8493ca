// Package cqa loads the preprocessed CQA annotation corpus and implements
// the transform that produces it from raw per-question text dumps.
package cqa
