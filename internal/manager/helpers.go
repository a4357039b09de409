package manager

import (
	"strbackend/internal/backend"
	"strbackend/pkg/types"
)

// Helper: find model in registry by id.
func (m *Manager) getModelByID(id string) (types.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// batchSize sums the first dimension of each request's input. Requests whose
// input cannot be read count as zero; the backend fails them on its own.
func batchSize(lm *loadedModel, reqs []backend.Request) int {
	name := lm.cfg.Input[0].Name
	total := 0
	for _, r := range reqs {
		in, err := r.Input(name)
		if err != nil {
			continue
		}
		if shape := in.Shape(); len(shape) > 0 && shape[0] > 0 {
			total += int(shape[0])
		}
	}
	return total
}

// checkBatchSize rejects batches larger than max_batch_size. Models without
// batching accept any number of requests.
func checkBatchSize(lm *loadedModel, reqs []backend.Request) error {
	max := lm.cfg.MaxBatchSize
	if max <= 0 {
		return nil
	}
	if n := batchSize(lm, reqs); n > max {
		return batchTooLargeError{modelID: lm.id, size: n, max: max}
	}
	return nil
}
