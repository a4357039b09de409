// Package model provides the model implementations the string backend can
// load. A model is resolved from the model_lib_path parameter through an
// in-process Registry instead of being loaded from a shared library.
package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Model is a string-in/string-out inference model.
type Model interface {
	// Initialize receives the resolved model parameters once, before the
	// first RunInference call.
	Initialize(params map[string]string) error
	// RunInference returns one response per request, in request order.
	RunInference(requests []string) ([]string, error)
}

// Closer is implemented by models holding resources.
type Closer interface {
	Close() error
}

// Factory creates a fresh model for one instance.
type Factory func() Model

// BuiltinPrefix selects a registered model by name rather than by path.
const BuiltinPrefix = "builtin:"

// Registry maps model names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve creates the model named by a model_lib_path value. Either
// "builtin:<name>" or a library path whose stem (without a "lib" prefix and
// extension) names the model, e.g. /models/r/libreverse.so -> reverse.
func (r *Registry) Resolve(libPath string) (Model, error) {
	name := LibName(libPath)
	if name == "" {
		return nil, fmt.Errorf("cannot derive model name from %q", libPath)
	}
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, modelNotFoundError{name: name, path: libPath}
	}
	return f(), nil
}

// LibName derives the registry name from a model_lib_path value.
func LibName(libPath string) string {
	if name, ok := strings.CutPrefix(libPath, BuiltinPrefix); ok {
		return strings.TrimSpace(name)
	}
	base := filepath.Base(strings.TrimSpace(libPath))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(base, "lib")
}

type modelNotFoundError struct{ name, path string }

func (e modelNotFoundError) Error() string {
	return fmt.Sprintf("cannot open library %q: no model registered as %q", e.path, e.name)
}

// IsNotFound reports whether err means no model is registered for a path.
func IsNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// Default holds the built-in models.
var Default = func() *Registry {
	r := NewRegistry()
	r.Register("echo", func() Model { return &Echo{} })
	r.Register("reverse", func() Model { return &Reverse{} })
	r.Register("upper", func() Model { return &Upper{} })
	r.Register("llama", func() Model { return NewLlama() })
	return r
}()
