//go:build !llama

package model

// This file provides a no-CGO stub for the llama model. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds CGO-free.

// Llama refuses to initialize without the 'llama' build tag.
type Llama struct{}

// NewLlama returns the stub llama model.
func NewLlama() Model { return &Llama{} }

func (m *Llama) Initialize(params map[string]string) error {
	if _, err := parseLlamaParams(params); err != nil {
		return err
	}
	return dependencyUnavailableError{msg: "llama support not built (missing 'llama' build tag)"}
}

func (m *Llama) RunInference([]string) ([]string, error) {
	return nil, dependencyUnavailableError{msg: "llama support not built (missing 'llama' build tag)"}
}
