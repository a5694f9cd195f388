package flow

import "github.com/tanmoyio/flowmr/phase"

// Xformer is the pure, side-effect-free transform applied to every result
// batch before it reaches the client (spec's "Result transformation").
// Absent (nil) means identity.
//
// The spec distinguishes two shapes: a transform whose domain is a single
// element of the batch (mapped elementwise), and one whose domain is the
// whole batch (applied once). ElementXformer and BatchXformer realize that
// distinction as two small adapters implementing the same interface,
// rather than type-switching on the result's shape at runtime.
type Xformer interface {
	apply(phase.Result) phase.Result
}

// ElementXformer maps fn over every element of the batch.
type ElementXformer func(any) any

func (fn ElementXformer) apply(batch phase.Result) phase.Result {
	out := make(phase.Result, len(batch))
	for i, v := range batch {
		out[i] = fn(v)
	}
	return out
}

// BatchXformer applies fn once to the whole batch.
type BatchXformer func(phase.Result) phase.Result

func (fn BatchXformer) apply(batch phase.Result) phase.Result {
	return fn(batch)
}
