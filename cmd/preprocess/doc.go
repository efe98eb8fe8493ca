// Package main provides the preprocessing transform from a raw QA dump
// directory plus its aligned annotation line files into the masked
// annotation JSON the training and inference drivers consume.
package main
