package manager

import (
	"context"
	"errors"
	"fmt"

	"strbackend/internal/backend"
	"strbackend/internal/model"
	"strbackend/internal/modelconfig"
)

// LoadModel loads the configuration of a registry model, resolves its
// implementation and creates its instances. Loading a ready model is a no-op.
func (m *Manager) LoadModel(ctx context.Context, id string) error {
	if id == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.RLock()
	cur, ok := m.models[id]
	ready := ok && cur.state == StateReady
	draining := ok && cur.state == StateDraining
	m.mu.RUnlock()
	if ready {
		return nil
	}
	if draining {
		return tooBusyError{modelID: id, reason: "draining"}
	}
	mdl, ok := m.getModelByID(id)
	if !ok {
		return ErrModelNotFound(id)
	}

	m.publish(Event{Name: EventLoadStart, ModelID: id, Fields: map[string]any{"path": mdl.Path}})
	m.mu.Lock()
	m.state = StateLoading
	m.mu.Unlock()

	lm, err := m.load(ctx, id, mdl.Path)
	if err != nil {
		m.mu.Lock()
		m.err = err.Error()
		if len(m.models) == 0 {
			m.state = StateError
		} else {
			m.state = StateReady
		}
		m.mu.Unlock()
		m.log.Error().Err(err).Str("model", id).Msg("model load failed")
		m.publish(Event{Name: EventLoadError, ModelID: id, Fields: map[string]any{"error": err.Error()}})
		return err
	}

	m.mu.Lock()
	m.models[id] = lm
	m.state = StateReady
	m.err = ""
	m.mu.Unlock()
	m.loadsTotal.Add(1)
	m.log.Info().Str("model", id).Str("library", lm.library).Int("instances", len(lm.instances)).
		Int("max_batch_size", lm.cfg.MaxBatchSize).Msg("model loaded")
	m.publish(Event{Name: EventLoadReady, ModelID: id, Fields: map[string]any{"instances": len(lm.instances)}})
	return nil
}

func (m *Manager) load(ctx context.Context, id, path string) (*loadedModel, error) {
	cfg, err := modelconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", id, err)
	}
	libPath := cfg.Parameters[modelconfig.ModelLibPathKey]
	count := cfg.InstanceCount
	if count <= 0 {
		count = 1
	}
	lm := &loadedModel{
		id:      id,
		cfg:     cfg,
		library: model.LibName(libPath),
		state:   StateReady,
		free:    make(chan *Instance, count),
		queueCh: make(chan struct{}, m.maxQueueDepth),
	}
	stats := m.stats(id)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			closeInstances(lm.instances)
			return nil, err
		}
		inst, err := m.newInstance(cfg, libPath, fmt.Sprintf("%s_%d", id, i), stats)
		if err != nil {
			closeInstances(lm.instances)
			return nil, fmt.Errorf("load model %s: %w", id, err)
		}
		lm.instances = append(lm.instances, inst)
		lm.free <- inst
	}
	return lm, nil
}

func (m *Manager) newInstance(cfg *modelconfig.ModelConfig, libPath, name string, stats backend.StatsReporter) (*Instance, error) {
	impl, err := m.impls.Resolve(libPath)
	if err != nil {
		return nil, err
	}
	if err := impl.Initialize(cfg.Parameters); err != nil {
		closeModel(impl)
		if model.IsDependencyUnavailable(err) {
			return nil, ErrDependencyUnavailable(err.Error())
		}
		return nil, fmt.Errorf("initialize %s: %w", name, err)
	}
	exec, err := backend.NewInstance(backend.InstanceConfig{
		ModelName:    cfg.Name,
		InstanceName: name,
		Input:        cfg.InputDescriptor(),
		Output:       cfg.OutputDescriptor(),
		States:       cfg.StateNames(),
		Model:        impl,
		Allocator:    m.alloc,
		Sync:         m.sync,
		Stats:        stats,
		Logger:       &m.log,
		PinnedInput:  m.pinned,
	})
	if err != nil {
		closeModel(impl)
		return nil, err
	}
	return &Instance{Name: name, exec: exec, impl: impl}, nil
}

// LoadAll loads the configured models, or every registry model when none
// were named. It keeps going after a failure and returns all errors joined.
func (m *Manager) LoadAll(ctx context.Context) error {
	ids := m.wanted
	if len(ids) == 0 {
		for _, mdl := range m.ListModels() {
			ids = append(ids, mdl.ID)
		}
	}
	var errs []error
	for _, id := range ids {
		if err := m.LoadModel(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeModel(impl model.Model) {
	if c, ok := impl.(model.Closer); ok {
		_ = c.Close()
	}
}

func closeInstances(insts []*Instance) {
	for _, inst := range insts {
		closeModel(inst.impl)
	}
}
