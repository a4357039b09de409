// Package memhost is an in-process host for the string backend. It supplies
// requests whose inputs live in ordinary memory, collects responses, hands
// out output buffers from a configurable allocator, and persists sequence
// state in a bounded in-memory store. The CLI and tests use it in place of a
// serving runtime.
package memhost
