// Package datasets implements the NS-CQA data model: masked question
// annotations, the token vocabulary, and the task batching consumed by the
// meta-trainer.
package datasets
