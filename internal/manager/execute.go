package manager

import (
	"context"

	"strbackend/internal/backend"
)

// Execute runs reqs as one batch on an idle instance of model id. It returns
// an error without touching the requests when the model is unknown, the batch
// is too large or admission fails; the caller still owns them then. Once the
// batch reaches an instance every request receives exactly one response.
func (m *Manager) Execute(ctx context.Context, id string, reqs []backend.Request) error {
	m.mu.RLock()
	lm := m.models[id]
	m.mu.RUnlock()
	if lm == nil {
		return ErrModelNotFound(id)
	}
	if len(reqs) == 0 {
		return nil
	}
	if err := checkBatchSize(lm, reqs); err != nil {
		return err
	}

	inst, release, err := m.acquire(ctx, lm)
	if err != nil {
		return err
	}
	defer release()

	if err := inst.exec.Execute(reqs); err != nil {
		m.log.Error().Err(err).Str("instance", inst.Name).Int("requests", len(reqs)).Msg("batch not executed")
		return err
	}
	m.mu.Lock()
	inst.batches++
	m.mu.Unlock()
	m.batchesTotal.Add(1)
	return nil
}
