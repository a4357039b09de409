package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Models found in the repository.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: reverse
	Error string `json:"error" example:"model not found: reverse"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// InstanceStatus summarizes one backend instance for /status.
type InstanceStatus struct {
	// Instance name, <model>_<index>.
	// example: reverse_0
	Name string `json:"name" example:"reverse_0"`
	// Whether the instance is executing a batch.
	Busy bool `json:"busy"`
	// Batches executed by this instance.
	// example: 12
	Batches uint64 `json:"batches" example:"12"`
	// Last time this instance finished a batch (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix,omitempty" example:"1700000000"`
}

// ModelStatus summarizes a loaded model for /status.
type ModelStatus struct {
	// Model name.
	// example: reverse
	Name string `json:"name" example:"reverse"`
	// Lifecycle state (loading, ready, draining, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Model implementation resolved from model_lib_path.
	// example: reverse
	Library string `json:"library" example:"reverse"`
	// Maximum batch size; 0 disables first-dimension batching.
	// example: 8
	MaxBatchSize int `json:"max_batch_size" example:"8"`
	// Full tensor shape, -1 for the batch dimension.
	// example: [-1,1]
	Shape []int64 `json:"shape"`
	// Batches waiting for a free instance.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Maximum batches allowed to wait before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Backend instances serving the model.
	Instances []InstanceStatus `json:"instances"`
	// Load error, when State is error.
	Error string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded models, sorted by name.
	Models []ModelStatus `json:"models"`
	// Overall manager state (loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of model loads.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Total number of batches executed.
	// example: 120
	BatchesTotal uint64 `json:"batches_total" example:"120"`
	// Total number of batches rejected by admission.
	// example: 2
	RejectedTotal uint64 `json:"rejected_total" example:"2"`
}
