package manager

import (
	"errors"
	"time"
)

// Unload initiates a graceful drain of a model and removes it.
//   - Sets the model state to draining to reject new batches.
//   - Waits up to drainTimeout for queued and running batches to finish.
//   - Removes the entry and closes the model implementations once no batch
//     holds an instance, in the background when the drain timed out.
func (m *Manager) Unload(id string) error {
	if id == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	lm := m.models[id]
	if lm == nil {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	lm.state = StateDraining
	m.mu.Unlock()
	m.publish(Event{Name: EventUnloadStart, ModelID: id})

	drained := make(chan struct{})
	go func() {
		lm.inflight.Wait()
		close(drained)
	}()
	timer := time.NewTimer(m.drainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
		lm.close()
	case <-timer.C:
		m.publish(Event{Name: EventUnloadTimeout, ModelID: id, Fields: map[string]any{"busy": len(lm.instances) - len(lm.free), "queue": len(lm.queueCh)}})
		// Checked-out instances are closed once their batches finish.
		go func() {
			<-drained
			lm.close()
		}()
	}

	m.mu.Lock()
	delete(m.models, id)
	if len(m.models) == 0 && m.state == StateReady {
		m.state = StateLoading
	}
	m.mu.Unlock()

	m.publish(Event{Name: EventUnloadDone, ModelID: id})
	return nil
}

// Close unloads every model.
func (m *Manager) Close() error {
	var errs []error
	for _, id := range m.LoadedModels() {
		if err := m.Unload(id); err != nil && !IsModelNotFound(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
