// Package modelconfig loads and validates the configuration of a model served
// by the string backend. Errors returned here abort model loading; they are
// never seen during execution.
package modelconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"strbackend/internal/backend"
	"strbackend/internal/common/fsutil"
)

// ModelLibPathKey is the parameter naming the model implementation to load.
const ModelLibPathKey = "model_lib_path"

// Tensor is an input or output entry of the model configuration.
type Tensor struct {
	Name     string  `json:"name" yaml:"name" toml:"name"`
	DataType string  `json:"data_type" yaml:"data_type" toml:"data_type"`
	Dims     []int64 `json:"dims" yaml:"dims" toml:"dims"`
	Reshape  *struct {
		Shape []int64 `json:"shape" yaml:"shape" toml:"shape"`
	} `json:"reshape,omitempty" yaml:"reshape,omitempty" toml:"reshape,omitempty"`
}

// StateTensor declares one sequence state.
type StateTensor struct {
	InputName  string  `json:"input_name" yaml:"input_name" toml:"input_name"`
	OutputName string  `json:"output_name" yaml:"output_name" toml:"output_name"`
	DataType   string  `json:"data_type" yaml:"data_type" toml:"data_type"`
	Dims       []int64 `json:"dims" yaml:"dims" toml:"dims"`
}

// SequenceBatching holds the sequence settings of a stateful model.
type SequenceBatching struct {
	State []StateTensor `json:"state" yaml:"state" toml:"state"`
}

// ModelConfig is a parsed model configuration.
type ModelConfig struct {
	Name          string            `json:"name" yaml:"name" toml:"name"`
	Backend       string            `json:"backend" yaml:"backend" toml:"backend"`
	MaxBatchSize  int               `json:"max_batch_size" yaml:"max_batch_size" toml:"max_batch_size"`
	InstanceCount int               `json:"instance_count" yaml:"instance_count" toml:"instance_count"`
	Input         []Tensor          `json:"input" yaml:"input" toml:"input"`
	Output        []Tensor          `json:"output" yaml:"output" toml:"output"`
	Sequence      *SequenceBatching `json:"sequence_batching,omitempty" yaml:"sequence_batching,omitempty" toml:"sequence_batching,omitempty"`
	// RawParameters accepts either plain strings or {string_value: ...} objects.
	RawParameters map[string]any `json:"parameters" yaml:"parameters" toml:"parameters"`

	// Parameters is the resolved key/value map handed to the model.
	Parameters map[string]string `json:"-" yaml:"-" toml:"-"`
	// Dir is the model directory substituted for the placeholder.
	Dir string `json:"-" yaml:"-" toml:"-"`
}

// ConfigFileNames lists the accepted config file names, in lookup order.
var ConfigFileNames = []string{"config.yaml", "config.yml", "config.json", "config.toml"}

// FindConfig returns the config file inside a model directory.
func FindConfig(dir string) (string, bool) {
	for _, name := range ConfigFileNames {
		p := filepath.Join(dir, name)
		if fsutil.PathExists(p) {
			return p, true
		}
	}
	return "", false
}

// Load reads, parses and validates the config at path. The model directory
// is the directory holding the file.
func Load(path string) (*ModelConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("empty model config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return Parse(b, filepath.Ext(path), dir)
}

// Parse decodes a config in the format named by ext (.yaml, .yml, .json,
// .toml), resolves its parameters against dir and validates it.
func Parse(b []byte, ext, dir string) (*ModelConfig, error) {
	var cfg ModelConfig
	switch ext := strings.ToLower(ext); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
	cfg.Dir = dir
	if cfg.Name == "" {
		cfg.Name = filepath.Base(dir)
	}
	if err := cfg.resolveParameters(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ModelConfig) resolveParameters() error {
	c.Parameters = make(map[string]string, len(c.RawParameters))
	for key, raw := range c.RawParameters {
		var value string
		switch v := raw.(type) {
		case string:
			value = v
		case map[string]any:
			s, ok := v["string_value"].(string)
			if !ok {
				return invalidArg("parameter %q: expected string_value", key)
			}
			value = s
		default:
			return invalidArg("parameter %q: expected a string, got %T", key, raw)
		}
		c.Parameters[key] = fsutil.ResolveModelDir(value, c.Dir)
	}
	return nil
}

// Validate checks that the model is supported: one BYTES input and one BYTES
// output with identical shapes, no reshape, and a model implementation.
func (c *ModelConfig) Validate() error {
	if len(c.Input) != 1 {
		return invalidArg("model configuration must have 1 input")
	}
	if len(c.Output) != 1 {
		return invalidArg("model configuration must have 1 output")
	}
	in, out := c.Input[0], c.Output[0]
	if in.Name == "" || out.Name == "" {
		return invalidArg("input and output must be named")
	}
	if in.DataType != out.DataType {
		return invalidArg("expected input and output datatype to match, got %s and %s", in.DataType, out.DataType)
	}
	if _, err := DataType(in.DataType); err != nil {
		return err
	}
	if in.Reshape != nil {
		return unsupported("reshape not supported for input tensor")
	}
	if out.Reshape != nil {
		return unsupported("reshape not supported for output tensor")
	}
	if !slices.Equal(in.Dims, out.Dims) {
		return invalidArg("expected input and output shape to match, got %s and %s", ShapeString(in.Dims), ShapeString(out.Dims))
	}
	if c.MaxBatchSize < 0 {
		return invalidArg("max_batch_size must be >= 0, got %d", c.MaxBatchSize)
	}
	if c.InstanceCount < 0 {
		return invalidArg("instance_count must be >= 0, got %d", c.InstanceCount)
	}
	if c.Sequence != nil {
		for i, st := range c.Sequence.State {
			if st.OutputName == "" {
				return invalidArg("sequence state %d: output_name is required", i)
			}
			if st.DataType != "" && st.DataType != in.DataType {
				return invalidArg("sequence state %q: datatype %s differs from output datatype %s", st.OutputName, st.DataType, in.DataType)
			}
			if st.Dims != nil && !slices.Equal(st.Dims, out.Dims) {
				return invalidArg("sequence state %q: expected shape %s, got %s", st.OutputName, ShapeString(out.Dims), ShapeString(st.Dims))
			}
		}
	}
	if _, ok := c.Parameters[ModelLibPathKey]; !ok {
		return invalidArg("failed to find '%s' in model config file", ModelLibPathKey)
	}
	return nil
}

// SupportsFirstDimBatching reports whether requests carry a batch dimension.
func (c *ModelConfig) SupportsFirstDimBatching() bool { return c.MaxBatchSize > 0 }

// TensorShape returns the full tensor shape, prefixed with -1 when the model
// batches along the first dimension.
func (c *ModelConfig) TensorShape() []int64 { return c.OutputDescriptor().Shape() }

// InputDescriptor describes the model input.
func (c *ModelConfig) InputDescriptor() backend.TensorDescriptor { return c.descriptor(c.Input[0]) }

// OutputDescriptor describes the model output.
func (c *ModelConfig) OutputDescriptor() backend.TensorDescriptor { return c.descriptor(c.Output[0]) }

func (c *ModelConfig) descriptor(t Tensor) backend.TensorDescriptor {
	dt, _ := DataType(t.DataType)
	return backend.TensorDescriptor{
		Name:             t.Name,
		DataType:         dt,
		NonBatchShape:    slices.Clone(t.Dims),
		FirstDimBatching: c.SupportsFirstDimBatching(),
	}
}

// StateNames lists the sequence state outputs, in declaration order.
func (c *ModelConfig) StateNames() []string {
	if c.Sequence == nil {
		return nil
	}
	names := make([]string, 0, len(c.Sequence.State))
	for _, st := range c.Sequence.State {
		names = append(names, st.OutputName)
	}
	return names
}

// ParameterKeys returns the parameter names in sorted order.
func (c *ModelConfig) ParameterKeys() []string {
	keys := make([]string, 0, len(c.Parameters))
	for k := range c.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DataType maps a configuration datatype to the wire datatype. Only string
// tensors are supported.
func DataType(s string) (backend.DataType, error) {
	switch strings.ToUpper(s) {
	case "TYPE_STRING", "BYTES":
		return backend.TypeBytes, nil
	case "":
		return "", invalidArg("datatype is required")
	default:
		return "", unsupported("datatype %s not supported: only TYPE_STRING", s)
	}
}

// ShapeString formats a shape the way it appears in error messages.
func ShapeString(shape []int64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
