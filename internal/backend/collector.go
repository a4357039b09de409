package backend

import (
	"fmt"
	"math"

	"strbackend/internal/framing"
)

// collected is the batch input gathered into one contiguous buffer.
type collected struct {
	data    []byte
	memType MemoryType
	// shapes holds each request's input shape, batch dimension included.
	shapes [][]int64
	// subSizes holds each request's batch sub-size (1 when not batching).
	subSizes []int
	// counts holds each request's element count.
	counts []int
	total  int
}

// collect gathers the configured input tensor of every request into one
// buffer. Any failure here is attributed to the whole batch.
func (inst *Instance) collect(reqs []Request) (collected, error) {
	c := collected{
		shapes:   make([][]int64, len(reqs)),
		subSizes: make([]int, len(reqs)),
		counts:   make([]int, len(reqs)),
	}
	var parts [][]byte
	partMT := MemoryCPU
	size := 0
	for i, r := range reqs {
		in, err := r.Input(inst.input.Name)
		if err != nil {
			return c, fmt.Errorf("request %d: input %q: %w", i, inst.input.Name, err)
		}
		if in.DataType() != inst.input.DataType {
			return c, fmt.Errorf("request %d: input %q has datatype %s, expected %s: %w", i, inst.input.Name, in.DataType(), inst.input.DataType, ErrInvalidInput)
		}
		shape := in.Shape()
		sub, err := inst.subSize(shape)
		if err != nil {
			return c, fmt.Errorf("request %d: input %q: %w", i, inst.input.Name, err)
		}
		n, err := ElementCount(shape)
		if err != nil {
			return c, fmt.Errorf("request %d: input %q: %v: %w", i, inst.input.Name, err, ErrInvalidInput)
		}
		if n > math.MaxInt-c.total {
			return c, fmt.Errorf("request %d: input %q: batch element count overflows: %w", i, inst.input.Name, ErrInvalidInput)
		}
		c.shapes[i] = shape
		c.subSizes[i] = sub
		c.counts[i] = n
		c.total += n
		for b := 0; b < in.BufferCount(); b++ {
			buf, mt, err := in.Buffer(b)
			if err != nil {
				return c, fmt.Errorf("request %d: input %q buffer %d: %w", i, inst.input.Name, b, err)
			}
			if mt != MemoryCPU && mt != MemoryCPUPinned {
				return c, fmt.Errorf("request %d: input %q buffer %d in %s memory: %w", i, inst.input.Name, b, mt, ErrMemoryClass)
			}
			parts = append(parts, buf)
			partMT = mt
			size += len(buf)
		}
	}

	// Every element carries at least its length prefix.
	if c.total > size/framing.PrefixSize {
		return c, fmt.Errorf("batch declares %d elements but carries %d input bytes: %w", c.total, size, ErrInvalidInput)
	}

	// A single contiguous part is used in place.
	if len(parts) == 1 {
		c.data = parts[0]
		c.memType = partMT
		return c, nil
	}
	preferred := MemoryCPU
	if inst.pinnedIn {
		preferred = MemoryCPUPinned
	}
	dst, mt, err := inst.alloc.Allocate(size, preferred)
	if err != nil {
		return c, fmt.Errorf("allocate %d byte input buffer: %w", size, err)
	}
	if mt != MemoryCPU && mt != MemoryCPUPinned {
		return c, fmt.Errorf("input buffer allocated in %s memory: %w", mt, ErrMemoryClass)
	}
	if len(dst) < size {
		return c, fmt.Errorf("allocator returned %d bytes, need %d", len(dst), size)
	}
	off := 0
	for _, p := range parts {
		off += copy(dst[off:], p)
	}
	c.data = dst[:size]
	c.memType = mt
	return c, nil
}

// subSize validates a request input shape against the model shape and
// returns the request's batch sub-size.
func (inst *Instance) subSize(shape []int64) (int, error) {
	nb := shape
	sub := 1
	if inst.input.FirstDimBatching {
		if len(shape) == 0 || shape[0] < 1 {
			return 0, fmt.Errorf("shape %v has no batch dimension: %w", shape, ErrInvalidInput)
		}
		sub = int(shape[0])
		nb = shape[1:]
	}
	if len(nb) != len(inst.input.NonBatchShape) {
		return 0, fmt.Errorf("shape %v does not match model shape %v: %w", shape, inst.input.Shape(), ErrInvalidInput)
	}
	for d, want := range inst.input.NonBatchShape {
		if want != -1 && nb[d] != want {
			return 0, fmt.Errorf("shape %v does not match model shape %v: %w", shape, inst.input.Shape(), ErrInvalidInput)
		}
	}
	return sub, nil
}

// decode splits the collected buffer into request strings. The buffer must
// hold exactly the batch's element count.
func (c collected) decode() ([]string, error) {
	spans, err := framing.Decode(c.data, c.total)
	if err != nil {
		return nil, err
	}
	return framing.Strings(spans), nil
}

// batchSize is the total element batch size reported in statistics.
func (c collected) batchSize() int {
	n := 0
	for _, s := range c.subSizes {
		n += s
	}
	return n
}
