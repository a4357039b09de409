package backend

import (
	"fmt"
	"slices"

	"strbackend/internal/framing"
)

// OutputTarget is a destination for framed results: an ordinary response
// output or a sequence state.
type OutputTarget struct {
	Name  string
	State bool
}

// ResponseOutput targets the named response output. It is only written for
// requests that asked for it.
func ResponseOutput(name string) OutputTarget { return OutputTarget{Name: name} }

// SequenceState targets the named sequence state. It is written for every
// request.
func SequenceState(name string) OutputTarget { return OutputTarget{Name: name, State: true} }

func (t OutputTarget) String() string {
	if t.State {
		return "state " + t.Name
	}
	return "output " + t.Name
}

// framedResults is the model output packed once per batch and sliced per
// request through the offset table.
type framedResults struct {
	payload []byte
	offsets framing.Offsets
}

// write frames each request's slice of results into target. Write failures
// fail only the affected request. It reports whether any buffer landed in
// accelerator memory.
func (inst *Instance) write(target OutputTarget, res framedResults, reqs []Request, slots []*slot, c collected) bool {
	accel := false
	elem := 0
	for ridx, r := range reqs {
		s := slots[ridx]
		count := c.counts[ridx]
		start := elem
		elem += count

		need := target.State
		if !need && s.pending() {
			var err error
			need, err = requested(r, target.Name)
			if err != nil {
				s.fail(requestError{target: target.String(), err: err})
				continue
			}
		}
		if !need {
			continue
		}

		mt, err := inst.writeOne(target, r, s, inst.responseShape(c, ridx), res, start, count)
		if err != nil {
			s.fail(requestError{target: target.String(), err: err})
			continue
		}
		if mt == MemoryGPU {
			accel = true
		}
	}
	return accel
}

func (inst *Instance) writeOne(target OutputTarget, r Request, s *slot, shape []int64, res framedResults, start, count int) (MemoryType, error) {
	var (
		dst   Output
		state State
		err   error
	)
	if target.State {
		state, err = r.NewState(target.Name, inst.output.DataType, shape)
		dst = state
	} else {
		dst, err = s.resp.Output(target.Name, inst.output.DataType, shape)
	}
	if err != nil {
		return MemoryCPU, err
	}

	// Payload bytes of this request plus one length prefix per element.
	size := framing.FramedSize(res.offsets, start, count)
	buf, mt, err := dst.Buffer(size, MemoryCPUPinned)
	if err != nil {
		return mt, err
	}
	n, err := framing.WriteRange(buf, res.payload, res.offsets, start, count)
	if err != nil {
		return mt, err
	}
	if n != size {
		return mt, fmt.Errorf("wrote %d bytes, expected %d", n, size)
	}
	if state != nil {
		if err := state.Commit(); err != nil {
			return mt, fmt.Errorf("commit: %w", err)
		}
	}
	return mt, nil
}

// responseShape is the model shape with the batch dimension replaced by the
// request's own sub-size and variable dimensions taken from the request.
func (inst *Instance) responseShape(c collected, ridx int) []int64 {
	shape := slices.Clone(inst.shape)
	in := c.shapes[ridx]
	for d := range shape {
		if shape[d] == -1 && d < len(in) {
			shape[d] = in[d]
		}
	}
	if inst.output.FirstDimBatching {
		shape[0] = int64(c.subSizes[ridx])
	}
	return shape
}

func requested(r Request, name string) (bool, error) {
	names, err := r.RequestedOutputs()
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}
