// Package manager loads models from a model repository and coordinates batch
// execution across their backend instances. It is structured into small files
// by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults.
//   - types.go: internal state types (State, Instance, loadedModel, Snapshot).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - helpers.go: registry lookup and batch size checks.
//   - load.go: LoadModel/LoadAll, resolving model implementations and creating instances.
//   - queue_admission.go: bounded queueing and instance checkout.
//   - execute.go: Execute, the batch entry point.
//   - unload.go: graceful drain, Unload and Close.
//   - status_report.go: Status/Snapshot reporting.
//   - events.go, eventpub_*.go: lifecycle events and publishers.
//
// Each instance executes at most one batch at a time. A batch that cannot get
// an instance within MaxWait, or finds the queue full, is rejected with a
// tooBusy error and stays owned by the caller.
package manager
