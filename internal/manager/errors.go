package manager

import (
	"errors"
	"fmt"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID, reason string }

func (e tooBusyError) Error() string {
	if e.reason == "" {
		return "too busy: " + e.modelID
	}
	return "too busy: " + e.modelID + " (" + e.reason + ")"
}

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// modelNotFoundError is returned when a model id is not present in the
// registry or not loaded.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a missing model id.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a model implementation whose runtime is
// not built in (e.g. llama.cpp without the llama tag).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// batchTooLargeError rejects a batch above the model's max_batch_size.
type batchTooLargeError struct {
	modelID   string
	size, max int
}

func (e batchTooLargeError) Error() string {
	return fmt.Sprintf("batch size %d exceeds max_batch_size %d of model %s", e.size, e.max, e.modelID)
}

// IsBatchTooLarge reports whether err rejected an oversized batch.
func IsBatchTooLarge(err error) bool {
	var e batchTooLargeError
	return errors.As(err, &e)
}
