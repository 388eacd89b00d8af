// Package client mediates access to the inference engine for the extraction
// pipeline. It is structured into small files by concern:
//
//   - client.go: the Client interface, Variant and per-slot Result types.
//   - errors.go: typed failure kinds and predicate helpers (IsConnection, ...).
//   - direct.go: in-process engine variant; batches are one scheduling unit.
//   - remote.go: network endpoint variant; batches fan out with bounded
//     concurrency, preserving input order.
//   - factory.go: serialized construction and the connection-time fallback
//     policy between the two variants.
//   - sampling.go: deterministic sampling normalization and prompt rendering.
//   - stats.go: single-writer counters snapshotted for external observers.
//   - metrics.go: Prometheus collectors fed by the stats tracker.
//   - preflight.go: startup environment checks.
//
// Token budget enforcement lives in inferd/internal/tokens and GPU capacity
// monitoring in inferd/internal/gpu; both variants consult them before
// submitting work. Fallback between variants happens only at construction
// time; an in-flight request is never re-routed mid-call.
package client
