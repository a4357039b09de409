package manager

import (
	"sort"
	"time"

	"strbackend/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{State: m.currentState(), Models: m.LoadedModels(), Err: m.lastErr()}
}

func (m *Manager) currentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) lastErr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	resp := types.StatusResponse{
		State:          string(m.state),
		LastError:      m.err,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		LoadsTotal:     m.loadsTotal.Load(),
		BatchesTotal:   m.batchesTotal.Load(),
		RejectedTotal:  m.rejectedTotal.Load(),
	}
	resp.Models = make([]types.ModelStatus, 0, len(m.models))
	for _, lm := range m.models {
		ms := types.ModelStatus{
			Name:          lm.id,
			State:         string(lm.state),
			Library:       lm.library,
			MaxBatchSize:  lm.cfg.MaxBatchSize,
			Shape:         lm.cfg.TensorShape(),
			QueueLen:      len(lm.queueCh),
			MaxQueueDepth: cap(lm.queueCh),
			Instances:     make([]types.InstanceStatus, 0, len(lm.instances)),
		}
		for _, inst := range lm.instances {
			is := types.InstanceStatus{Name: inst.Name, Busy: inst.busy, Batches: inst.batches}
			if !inst.lastUsed.IsZero() {
				is.LastUsed = inst.lastUsed.Unix()
			}
			ms.Instances = append(ms.Instances, is)
		}
		resp.Models = append(resp.Models, ms)
	}
	sort.Slice(resp.Models, func(i, j int) bool { return resp.Models[i].Name < resp.Models[j].Name })
	return resp
}
