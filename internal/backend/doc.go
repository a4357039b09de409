// Package backend executes batches of BYTES inference requests against a
// string-in/string-out model. It is structured into small files by concern:
//
//   - types.go: tensor descriptors, memory classes and the host-facing interfaces.
//   - errors.go: batch-wide and per-request error types and predicates.
//   - instance.go: InstanceConfig, defaults and NewInstance.
//   - collector.go: gathers every request's input into one buffer and decodes it.
//   - invoker.go: the single model call per batch and its cardinality check.
//   - writer.go: frames results into response outputs and sequence state.
//   - execute.go: the per-batch controller and response slots.
//   - stats.go: statistics reporting hooks.
//
// An Instance holds no mutable state across Execute calls. The host must not
// call Execute concurrently on the same Instance; distinct instances may run
// in parallel.
package backend
