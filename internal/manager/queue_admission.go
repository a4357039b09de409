package manager

import (
	"context"
	"time"

	"strbackend/internal/metrics"
)

// acquire reserves a queue slot and then checks out an idle instance.
// Returns a release func to be deferred.
func (m *Manager) acquire(ctx context.Context, lm *loadedModel) (*Instance, func(), error) {
	m.mu.Lock()
	if lm.state != StateReady {
		m.mu.Unlock()
		return nil, func() {}, m.reject(lm.id, "draining")
	}
	lm.inflight.Add(1)
	m.mu.Unlock()

	acquired := false
	defer func() {
		if !acquired {
			lm.inflight.Done()
		}
	}()

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return nil, func() {}, err
	}

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case lm.queueCh <- struct{}{}:
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	case <-timer.C:
		return nil, func() {}, m.reject(lm.id, "queue_full")
	}

	defer func() {
		if !acquired {
			<-lm.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, func() {}, err
	}
	// The queue wait already consumed part of the budget.
	select {
	case inst := <-lm.free:
		acquired = true
		m.mu.Lock()
		inst.busy = true
		m.mu.Unlock()
		metrics.InstanceAcquired(lm.id)
		return inst, func() {
			m.mu.Lock()
			inst.busy = false
			inst.lastUsed = time.Now()
			m.mu.Unlock()
			metrics.InstanceReleased(lm.id)
			lm.free <- inst
			<-lm.queueCh
			lm.inflight.Done()
		}, nil
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	case <-timer.C:
		return nil, func() {}, m.reject(lm.id, "no_instance")
	}
}

func (m *Manager) reject(id, reason string) error {
	m.rejectedTotal.Add(1)
	metrics.AdmissionRejected(id, reason)
	m.publish(Event{Name: EventRejected, ModelID: id, Fields: map[string]any{"reason": reason}})
	return tooBusyError{modelID: id, reason: reason}
}
