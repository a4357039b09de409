// Package framing implements the length-prefixed layout used for BYTES
// tensors: every element is a little-endian uint32 length followed by that
// many raw bytes, elements concatenated with no padding.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// PrefixSize is the size of the length prefix in front of every element.
const PrefixSize = 4

var (
	// ErrTruncated is returned when a buffer ends inside a prefix or payload.
	ErrTruncated = errors.New("framing: truncated element")
	// ErrTrailingBytes is returned when a buffer holds more bytes than the
	// requested number of elements account for.
	ErrTrailingBytes = errors.New("framing: trailing bytes after last element")
	// ErrElementTooLarge is returned for elements that do not fit a uint32 length.
	ErrElementTooLarge = errors.New("framing: element exceeds uint32 length")
)

// Offsets is a cumulative payload index over M elements. It holds M+1
// entries: Offsets[0] = 0 and Offsets[i+1] = Offsets[i] + len(element i).
// Length prefixes are not counted.
type Offsets []int

// Len returns the number of elements the table indexes.
func (o Offsets) Len() int {
	if len(o) == 0 {
		return 0
	}
	return len(o) - 1
}

// Span returns the payload bytes of elements [start, start+count).
func (o Offsets) Span(start, count int) int {
	return o[start+count] - o[start]
}

// Element returns the payload length of element i.
func (o Offsets) Element(i int) int {
	return o[i+1] - o[i]
}

// Validate checks the table invariants against a payload of total bytes.
func (o Offsets) Validate(total int) error {
	if len(o) == 0 {
		return errors.New("framing: empty offset table")
	}
	if o[0] != 0 {
		return fmt.Errorf("framing: offset table starts at %d", o[0])
	}
	for i := 1; i < len(o); i++ {
		if o[i] < o[i-1] {
			return fmt.Errorf("framing: offset %d decreases (%d < %d)", i, o[i], o[i-1])
		}
	}
	if last := o[len(o)-1]; last != total {
		return fmt.Errorf("framing: offset table ends at %d, payload holds %d bytes", last, total)
	}
	return nil
}

// FramedSize is the number of bytes elements [start, start+count) occupy
// once framed: their payload plus one prefix per element.
func FramedSize(o Offsets, start, count int) int {
	return o.Span(start, count) + PrefixSize*count
}

// Pack concatenates elems without prefixes and returns the payload together
// with its offset table.
func Pack(elems []string) ([]byte, Offsets, error) {
	offsets := make(Offsets, len(elems)+1)
	total := 0
	for i, e := range elems {
		if uint64(len(e)) > math.MaxUint32 {
			return nil, nil, fmt.Errorf("element %d: %w", i, ErrElementTooLarge)
		}
		total += len(e)
		offsets[i+1] = total
	}
	payload := make([]byte, 0, total)
	for _, e := range elems {
		payload = append(payload, e...)
	}
	return payload, offsets, nil
}

// Encode frames elems and returns the framed bytes together with the payload
// offset table.
func Encode(elems []string) ([]byte, Offsets, error) {
	payload, offsets, err := Pack(elems)
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, FramedSize(offsets, 0, len(elems)))
	if _, err := WriteRange(buf, payload, offsets, 0, len(elems)); err != nil {
		return nil, nil, err
	}
	return buf, offsets, nil
}

// AppendElement appends one framed element to dst.
func AppendElement(dst, elem []byte) []byte {
	var prefix [PrefixSize]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(elem)))
	dst = append(dst, prefix[:]...)
	return append(dst, elem...)
}

// WriteRange frames elements [start, start+count) of payload into dst and
// returns the number of bytes written. dst must hold at least
// FramedSize(offsets, start, count) bytes.
func WriteRange(dst, payload []byte, offsets Offsets, start, count int) (int, error) {
	need := FramedSize(offsets, start, count)
	if len(dst) < need {
		return 0, fmt.Errorf("framing: destination holds %d bytes, need %d", len(dst), need)
	}
	n := 0
	for e := start; e < start+count; e++ {
		l := offsets.Element(e)
		binary.LittleEndian.PutUint32(dst[n:], uint32(l))
		n += PrefixSize
		n += copy(dst[n:n+l], payload[offsets[e]:offsets[e+1]])
	}
	return n, nil
}

// Decode reads exactly n elements from buf. The returned spans alias buf.
// The whole buffer must be consumed.
func Decode(buf []byte, n int) ([][]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative element count %d", n)
	}
	out := make([][]byte, 0, min(n, len(buf)/PrefixSize))
	cur := 0
	for i := 0; i < n; i++ {
		elem, end, err := readElement(buf, cur)
		if err != nil {
			return nil, fmt.Errorf("element %d of %d: %w", i, n, err)
		}
		out = append(out, elem)
		cur = end
	}
	if cur != len(buf) {
		return nil, fmt.Errorf("%d of %d bytes consumed by %d elements: %w", cur, len(buf), n, ErrTrailingBytes)
	}
	return out, nil
}

// DecodeAll reads elements until buf is exhausted.
func DecodeAll(buf []byte) ([][]byte, error) {
	var out [][]byte
	for cur := 0; cur < len(buf); {
		elem, end, err := readElement(buf, cur)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", len(out), err)
		}
		out = append(out, elem)
		cur = end
	}
	return out, nil
}

// Strings converts decoded spans into strings.
func Strings(spans [][]byte) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(s)
	}
	return out
}

func readElement(buf []byte, cur int) ([]byte, int, error) {
	if len(buf)-cur < PrefixSize {
		return nil, cur, ErrTruncated
	}
	l := int(binary.LittleEndian.Uint32(buf[cur:]))
	cur += PrefixSize
	if l > len(buf)-cur {
		return nil, cur, ErrTruncated
	}
	return buf[cur : cur+l], cur + l, nil
}
