package backend

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

// InstanceConfig carries the validated model configuration and the
// collaborators an Instance needs.
type InstanceConfig struct {
	ModelName    string
	InstanceName string
	Input        TensorDescriptor
	Output       TensorDescriptor
	// States names the sequence state outputs written on every execution.
	States []string
	Model  Model

	// Optional collaborators.
	Allocator Allocator
	Sync      Synchronizer
	Stats     StatsReporter
	Logger    *zerolog.Logger
	// PinnedInput prefers pinned host memory for the collected input buffer.
	PinnedInput bool
}

// Instance executes batches for one model instance.
type Instance struct {
	name     string
	model    string
	input    TensorDescriptor
	output   TensorDescriptor
	shape    []int64
	states   []string
	impl     Model
	alloc    Allocator
	sync     Synchronizer
	stats    StatsReporter
	log      zerolog.Logger
	pinnedIn bool
}

// NewInstance validates cfg and builds an Instance.
func NewInstance(cfg InstanceConfig) (*Instance, error) {
	if cfg.Model == nil {
		return nil, errors.New("model must not be nil")
	}
	if cfg.Input.Name == "" || cfg.Output.Name == "" {
		return nil, errors.New("input and output tensor names are required")
	}
	if cfg.Input.DataType != TypeBytes || cfg.Output.DataType != TypeBytes {
		return nil, fmt.Errorf("unsupported datatype %s/%s: only %s is supported", cfg.Input.DataType, cfg.Output.DataType, TypeBytes)
	}
	if !slices.Equal(cfg.Input.NonBatchShape, cfg.Output.NonBatchShape) || cfg.Input.FirstDimBatching != cfg.Output.FirstDimBatching {
		return nil, fmt.Errorf("expected input and output shape to match, got %v and %v", cfg.Input.Shape(), cfg.Output.Shape())
	}
	inst := &Instance{
		name:     cfg.InstanceName,
		model:    cfg.ModelName,
		input:    cfg.Input,
		output:   cfg.Output,
		shape:    cfg.Output.Shape(),
		states:   slices.Clone(cfg.States),
		impl:     cfg.Model,
		alloc:    cfg.Allocator,
		sync:     cfg.Sync,
		stats:    cfg.Stats,
		pinnedIn: cfg.PinnedInput,
	}
	if inst.alloc == nil {
		inst.alloc = heapAllocator{}
	}
	if inst.stats == nil {
		inst.stats = nopStats{}
	}
	base := zerolog.Nop()
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	inst.log = base.With().Str("model", cfg.ModelName).Str("instance", cfg.InstanceName).Logger()
	return inst, nil
}

// Name returns the instance name.
func (inst *Instance) Name() string { return inst.name }

// ModelName returns the name of the model served by the instance.
func (inst *Instance) ModelName() string { return inst.model }
