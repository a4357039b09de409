package manager

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"strbackend/internal/backend"
	"strbackend/internal/model"
	"strbackend/pkg/types"
)

type Manager struct {
	mu       sync.RWMutex
	state    State
	err      string
	registry []types.Model
	wanted   []string
	models   map[string]*loadedModel

	impls     *model.Registry
	alloc     backend.Allocator
	sync      backend.Synchronizer
	pinned    bool
	stats     func(model string) backend.StatsReporter
	publisher EventPublisher
	log       zerolog.Logger

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	startTime     time.Time
	loadsTotal    atomic.Uint64
	batchesTotal  atomic.Uint64
	rejectedTotal atomic.Uint64
}

// SetEventPublisher replaces the event publisher. A nil publisher drops events.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	p.Publish(e)
}

// Ready reports whether at least one model can execute batches.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateError {
		return false
	}
	for _, lm := range m.models {
		if lm.state == StateReady {
			return true
		}
	}
	return false
}

// ListModels returns the repository models.
func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// LoadedModels returns the ids of the loaded models, sorted.
func (m *Manager) LoadedModels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.models))
	for id := range m.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ModelConfigOf returns the input and output names and batching mode of a
// loaded model, as needed to build requests for it.
func (m *Manager) ModelConfigOf(id string) (input, output string, batching bool, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lm := m.models[id]
	if lm == nil {
		return "", "", false, ErrModelNotFound(id)
	}
	return lm.cfg.Input[0].Name, lm.cfg.Output[0].Name, lm.cfg.SupportsFirstDimBatching(), nil
}
