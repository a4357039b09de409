package backend

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"strbackend/internal/framing"
)

type slotState int

const (
	slotPending slotState = iota
	slotSent
	slotFailed
)

// slot tracks the single terminal response owed to one request.
type slot struct {
	resp  Response
	state slotState
	err   error
	log   *zerolog.Logger
	id    string
}

func (s *slot) pending() bool { return s.state == slotPending }

// fail sends an error response. It is a no-op once the slot is terminal.
func (s *slot) fail(err error) {
	if s.state != slotPending {
		return
	}
	s.state = slotFailed
	s.err = err
	s.log.Warn().Str("request", s.id).Err(err).Msg("request failed")
	if sendErr := s.resp.Send(err); sendErr != nil {
		s.log.Error().Str("request", s.id).Err(sendErr).Msg("failed to send error response")
	}
}

// finish sends the success response of a slot still pending.
func (s *slot) finish() {
	if s.state != slotPending {
		return
	}
	s.state = slotSent
	if err := s.resp.Send(nil); err != nil {
		s.log.Error().Str("request", s.id).Err(err).Msg("failed to send response")
	}
}

func failAll(slots []*slot, err error) {
	for _, s := range slots {
		s.fail(err)
	}
}

// Execute runs one batch to completion. Every request receives exactly one
// terminal response, success or error, before Execute returns. Failures of
// the shared stages fail the whole batch; write failures fail only the
// affected request.
//
// A non-nil error is returned only when the response objects could not be
// created. In that case no response was sent and the host owns the requests.
func (inst *Instance) Execute(reqs []Request) error {
	times := BatchTimes{ExecStart: time.Now()}

	slots := make([]*slot, len(reqs))
	for i, r := range reqs {
		resp, err := r.NewResponse()
		if err != nil {
			return fmt.Errorf("create response for request %d: %w", i, err)
		}
		slots[i] = &slot{resp: resp, log: &inst.log, id: r.ID()}
	}

	c, err := inst.collect(reqs)
	if err != nil {
		err = newBatchError("collect input", err)
		inst.log.Error().Err(err).Int("requests", len(reqs)).Msg("input collection failed")
		failAll(slots, err)
	}

	times.ComputeStart = time.Now()
	accel := false
	if err == nil {
		accel = inst.run(reqs, slots, c)
	}
	times.ComputeEnd = time.Now()

	// Accelerator copies must land before any response is sent.
	if accel && inst.sync != nil {
		if err := inst.sync.Synchronize(); err != nil {
			failAll(slots, fmt.Errorf("synchronize output copies: %w", err))
		}
	}

	failed := 0
	for _, s := range slots {
		s.finish()
		if s.state == slotFailed {
			failed++
		}
	}
	times.ExecEnd = time.Now()

	batchSize := len(reqs)
	if inst.input.FirstDimBatching {
		batchSize = inst.reportedBatchSize(reqs, c, err == nil)
	}
	for i, r := range reqs {
		inst.stats.ReportRequest(r, slots[i].state == slotSent, times)
		if err := r.Release(); err != nil {
			inst.log.Error().Str("request", r.ID()).Err(err).Msg("failed releasing request")
		}
	}
	inst.stats.ReportBatch(batchSize, times)

	inst.log.Debug().
		Int("requests", len(reqs)).
		Int("elements", c.total).
		Int("failed", failed).
		Dur("exec", times.ExecEnd.Sub(times.ExecStart)).
		Msg("batch executed")
	return nil
}

// run decodes the collected input, calls the model and writes every target.
func (inst *Instance) run(reqs []Request, slots []*slot, c collected) bool {
	if e := inst.log.Trace(); e.Enabled() {
		e.Str("input", inst.input.Name).Bytes("value", c.data).Msg("collected input")
	}
	requests, err := c.decode()
	if err != nil {
		err = newBatchError("decode input", err)
		inst.log.Error().Err(err).Int("elements", c.total).Msg("input framing does not match batch")
		failAll(slots, err)
		return false
	}

	results, err := inst.invoke(requests)
	if err != nil {
		inst.log.Error().Err(err).Msg("inference failed")
		failAll(slots, err)
		return false
	}

	payload, offsets, err := framing.Pack(results)
	if err != nil {
		err = newBatchError("frame results", err)
		inst.log.Error().Err(err).Msg("cannot frame model results")
		failAll(slots, err)
		return false
	}
	res := framedResults{payload: payload, offsets: offsets}

	accel := inst.write(ResponseOutput(inst.output.Name), res, reqs, slots, c)
	for _, name := range inst.states {
		if inst.write(SequenceState(name), res, reqs, slots, c) {
			accel = true
		}
	}
	return accel
}

// reportedBatchSize sums the per-request sub-sizes. When collection failed
// the sizes are read back from the request inputs where possible.
func (inst *Instance) reportedBatchSize(reqs []Request, c collected, collectedOK bool) int {
	if collectedOK {
		return c.batchSize()
	}
	total := 0
	for _, r := range reqs {
		in, err := r.Input(inst.input.Name)
		if err != nil {
			inst.log.Error().Str("request", r.ID()).Err(err).Msg("failed getting request input")
			continue
		}
		if shape := in.Shape(); len(shape) > 0 && shape[0] > 0 {
			if int64(math.MaxInt-total) < shape[0] {
				return math.MaxInt
			}
			total += int(shape[0])
		}
	}
	return total
}
