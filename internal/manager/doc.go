// Package manager coordinates generation jobs for chat sessions. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - backend.go: the Backend and EventStream interfaces and the client adapter.
//   - registry.go: Start/Cancel/CancelJob/Lookup over the session map (single flight per session).
//   - job.go: Job handle, cancellation latch, and Outcome.
//   - run.go: per-job lifecycle: submit, then poll and listen until terminal.
//   - poller.go: completion polling; the sole authority for success and failure.
//   - listener.go: progress stream bridge with percent coalescing.
//   - deliver.go: Sink interface and the per-job delivery goroutine.
//   - errors.go: error types and helpers (IsAlreadyActive, IsNotFound, IsTimeout).
//   - events.go, eventpub_memory.go: lifecycle event publication.
//   - status.go: Session/Sessions/Status reporting and Shutdown.
//
// Each job runs a run goroutine, a delivery goroutine, and while the job is
// submitted a poll loop and a stream listener. The sink passed to Start is
// only ever called from the delivery goroutine: ticks first, in increasing
// order, then exactly one Done.
//
// External packages should treat this package as the orchestration layer and
// use public methods only (NewWithConfig, Start, Cancel, CancelJob, Lookup,
// Session, Sessions, Status, Shutdown).
package manager
