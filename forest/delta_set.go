package forest

import "fmt"

// EncodeDeltaSet concatenates the encodings of deltas with no framing; a
// DeltaSetIter recovers the individual deltas by reading lengths and
// advancing until the offset reaches the end of the buffer.
func EncodeDeltaSet(deltas []Delta) []byte {
	size := 0
	for _, d := range deltas {
		size += d.encodedSize()
	}
	buf := make([]byte, 0, size)
	for _, d := range deltas {
		buf = d.encode(buf)
	}
	return buf
}

// DecodeDeltaSet fully decodes buf into owning Deltas, validating that no
// delta's declared lengths run past the end of the buffer.
func DecodeDeltaSet(buf []byte) ([]Delta, error) {
	var out []Delta
	it := NewDeltaSetIter(buf)
	for it.Next() {
		out = append(out, it.Raw().ToDelta())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeltaSetIter iterates the deltas encoded in a buffer without allocating,
// yielding a RawDelta borrowed view at each step.
type DeltaSetIter struct {
	buf    []byte
	offset uint64
	cur    RawDelta
	err    error
}

// NewDeltaSetIter prepares an iterator over the DeltaSet encoded in buf.
func NewDeltaSetIter(buf []byte) *DeltaSetIter {
	return &DeltaSetIter{buf: buf}
}

// Next advances to the next delta, returning false at end-of-buffer or on
// the first malformed delta encountered (check Err to distinguish the two).
func (it *DeltaSetIter) Next() bool {
	if it.err != nil {
		return false
	}
	if it.offset >= uint64(len(it.buf)) {
		return false
	}
	remaining := it.buf[it.offset:]
	if len(remaining) < 16 {
		it.err = fmt.Errorf("forest: truncated delta header")
		return false
	}
	raw := RawDelta{buf: remaining}
	avail := uint64(len(remaining)) - 16
	if raw.numKeyBytes() > avail || raw.numValBytes() > avail-raw.numKeyBytes() {
		it.err = fmt.Errorf("forest: delta lengths %d+%d exceed remaining buffer of %d bytes", raw.numKeyBytes(), raw.numValBytes(), avail)
		return false
	}
	size := raw.size()
	it.cur = RawDelta{buf: remaining[:size]}
	it.offset += size
	return true
}

// Raw returns the delta produced by the most recent successful Next call.
func (it *DeltaSetIter) Raw() RawDelta { return it.cur }

// Err returns any decoding error encountered by Next.
func (it *DeltaSetIter) Err() error { return it.err }
