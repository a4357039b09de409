package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// llamaParams are the generation settings read from model parameters.
type llamaParams struct {
	ModelPath   string
	ContextSize int
	Threads     int
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
	Penalty     float32
	Seed        int
	Stop        []string
}

// parseLlamaParams reads the llama parameters; unset keys keep their zero
// value and fall back to library defaults.
func parseLlamaParams(params map[string]string) (llamaParams, error) {
	p := llamaParams{ModelPath: strings.TrimSpace(params["model_path"])}
	if p.ModelPath == "" {
		return p, fmt.Errorf("llama: model_path parameter is required")
	}
	ints := map[string]*int{
		"context_size": &p.ContextSize,
		"threads":      &p.Threads,
		"max_tokens":   &p.MaxTokens,
		"top_k":        &p.TopK,
		"seed":         &p.Seed,
	}
	for key, dst := range ints {
		if v, ok := params[key]; ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return p, fmt.Errorf("llama: %s: %w", key, err)
			}
			*dst = n
		}
	}
	floats := map[string]*float32{
		"temperature":    &p.Temperature,
		"top_p":          &p.TopP,
		"repeat_penalty": &p.Penalty,
	}
	for key, dst := range floats {
		if v, ok := params[key]; ok && v != "" {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return p, fmt.Errorf("llama: %s: %w", key, err)
			}
			*dst = float32(f)
		}
	}
	if v := params["stop"]; v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				p.Stop = append(p.Stop, s)
			}
		}
	}
	return p, nil
}

// dependencyUnavailableError signals a model whose runtime is not built in.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}
