package backend

import "fmt"

// invoke calls the model exactly once for the whole batch. Errors and panics
// raised by the model never escape; they come back as batch errors, as does a
// result count that differs from the request count.
func (inst *Instance) invoke(requests []string) (results []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = newBatchError("inference", fmt.Errorf("model %s: failed to run inference: panic: %v", inst.model, r))
		}
	}()
	results, err = inst.impl.RunInference(requests)
	if err != nil {
		return nil, newBatchError("inference", fmt.Errorf("model %s: failed to run inference: %w", inst.model, err))
	}
	if len(results) != len(requests) {
		return nil, newBatchError("inference", cardinalityError{want: len(requests), got: len(results)})
	}
	return results, nil
}
