package manager

import (
	"sync"
	"time"

	"strbackend/internal/backend"
	"strbackend/internal/model"
	"strbackend/internal/modelconfig"
)

// State represents lifecycle state of the manager and its models.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateDraining State = "draining"
	StateError    State = "error"
)

// Instance is one backend instance of a loaded model.
type Instance struct {
	Name     string
	exec     *backend.Instance
	impl     model.Model
	busy     bool
	batches  uint64
	lastUsed time.Time
}

// loadedModel groups the instances serving one model.
type loadedModel struct {
	id        string
	cfg       *modelconfig.ModelConfig
	library   string
	state     State
	instances []*Instance
	// free holds the idle instances.
	free chan *Instance
	// queueCh bounds the batches waiting for or holding an instance.
	queueCh chan struct{}
	// inflight counts admitted batches. Add happens under Manager.mu while
	// the model is ready.
	inflight  sync.WaitGroup
	closeOnce sync.Once
}

// close releases the model implementations of every instance, once.
func (lm *loadedModel) close() {
	lm.closeOnce.Do(func() { closeInstances(lm.instances) })
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State  State
	Models []string
	Err    string
}
