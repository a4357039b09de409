package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrMemoryClass signals an input buffer outside the allowed memory classes.
	ErrMemoryClass = errors.New("tensor buffer not in an allowed memory class")
	// ErrInvalidInput signals a request input that does not match the model.
	ErrInvalidInput = errors.New("invalid request input")
)

// batchError fails every request of a batch. It is produced by the shared
// stages: input collection, decoding and the model call.
type batchError struct {
	stage string
	err   error
}

func (e batchError) Error() string { return e.stage + ": " + e.err.Error() }

func (e batchError) Unwrap() error { return e.err }

func newBatchError(stage string, err error) error { return batchError{stage: stage, err: err} }

// IsBatchError reports whether err was attributed to a whole batch.
func IsBatchError(err error) bool {
	var be batchError
	return errors.As(err, &be)
}

// cardinalityError reports a model that returned the wrong number of results.
type cardinalityError struct{ want, got int }

func (e cardinalityError) Error() string {
	return fmt.Sprintf("model inference expected %d response strings, but got %d", e.want, e.got)
}

// IsCardinalityMismatch reports whether err stems from a result count mismatch.
func IsCardinalityMismatch(err error) bool {
	var ce cardinalityError
	return errors.As(err, &ce)
}

// requestError is a failure isolated to one request's output or state write.
type requestError struct {
	target string
	err    error
}

func (e requestError) Error() string { return e.target + ": " + e.err.Error() }

func (e requestError) Unwrap() error { return e.err }

// IsRequestError reports whether err was isolated to a single request.
func IsRequestError(err error) bool {
	var re requestError
	return errors.As(err, &re)
}
