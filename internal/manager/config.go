package manager

import (
	"time"

	"github.com/rs/zerolog"

	"strbackend/internal/backend"
	"strbackend/internal/metrics"
	"strbackend/internal/model"
	"strbackend/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Registry lists the models of the repository.
	Registry []types.Model
	// Models restricts LoadAll to these ids; empty loads every registry model.
	Models []string
	// Implementations resolves model_lib_path values; defaults to model.Default.
	Implementations *model.Registry
	MaxQueueDepth   int
	MaxWait         time.Duration
	DrainTimeout    time.Duration

	// Host collaborators handed to every backend instance.
	Allocator   backend.Allocator
	Sync        backend.Synchronizer
	PinnedInput bool
	// Stats builds the reporter of a model; defaults to Prometheus.
	Stats func(model string) backend.StatsReporter

	Publisher EventPublisher
	Logger    *zerolog.Logger
}

func defaultStats(name string) backend.StatsReporter { return metrics.NewReporter(name) }

// New constructs a Manager from ManagerConfig. Models are not loaded until
// LoadModel or LoadAll is called.
func New(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:     StateLoading,
		registry:  append([]types.Model(nil), cfg.Registry...),
		wanted:    append([]string(nil), cfg.Models...),
		models:    make(map[string]*loadedModel),
		impls:     cfg.Implementations,
		alloc:     cfg.Allocator,
		sync:      cfg.Sync,
		pinned:    cfg.PinnedInput,
		stats:     cfg.Stats,
		publisher: cfg.Publisher,
		startTime: time.Now(),
	}
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if m.impls == nil {
		m.impls = model.Default
	}
	if m.stats == nil {
		m.stats = defaultStats
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	base := zerolog.Nop()
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	m.log = base.With().Str("component", "manager").Logger()
	return m
}
