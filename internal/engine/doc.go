// Package engine answers questions end to end.
//
// One question runs the pipeline in order:
//
//  1. extract: tokenize and propose candidate spans
//  2. resolve: validate spans against the vocabulary and live data
//  3. plan: build predicates and compile one query per (entity, metric, period)
//  4. execute: dispatch queries with bounded concurrency
//  5. aggregate: merge rows into cells and facts
//  6. render: hand the facts to the narrative renderer
//
// Every question gets an ID, a sequence number and a diag.Context whose
// events are returned with the Outcome. A question that cannot be answered
// is an Outcome with a non-answered Status, not an error. Ask returns an
// error only when the context ends or a stage fails unexpectedly.
//
// The engine holds no per-question state and is safe for concurrent use.
package engine
