package forest

// DeltaMap maps version IDs to delta sets. A version's entry is empty if
// and only if it is the current version of its tree (invariant 3); a
// missing entry is never current (open question 2) and indicates the
// version doesn't exist at all.
type DeltaMap struct {
	tree Tree
}

func newDeltaMap(tree Tree) DeltaMap {
	return DeltaMap{tree: tree}
}

// Get returns the raw encoded delta set at v, or (nil, false) if v has no
// entry at all.
func (m DeltaMap) Get(v Version) ([]byte, bool) {
	return m.tree.Get(v.encode())
}

// Remove deletes v's entry entirely, returning its prior raw bytes if any.
func (m DeltaMap) Remove(v Version) ([]byte, bool) {
	buf, ok := m.tree.Get(v.encode())
	if !ok {
		return nil, false
	}
	m.tree.Delete(v.encode())
	return buf, true
}

// IsCurrent reports whether v's entry exists and is empty. A missing entry
// is not current: invariant 2 (coverage) forbids a live version from having
// no DeltaMap entry, so a caller seeing false here for a missing v should
// treat that as a signal to check existence separately, not as "not yet
// current."
func (m DeltaMap) IsCurrent(v Version) bool {
	buf, ok := m.tree.Get(v.encode())
	return ok && len(buf) == 0
}

// WriteDeltas overwrites v's entry with the encoding of deltas, creating it
// if absent. Passing an empty slice creates a current-version entry.
func (m DeltaMap) WriteDeltas(v Version, deltas []Delta) {
	if err := m.tree.Insert(v.encode(), EncodeDeltaSet(deltas)); err != nil {
		corrupt("delta map write failed: " + err.Error())
	}
}

// AppendDeltas requires v to already have an entry; it appends the encoded
// deltas after the existing bytes. Aborts (caller-visible) if v is missing,
// since this path is reachable with a caller-supplied version.
func (m DeltaMap) AppendDeltas(v Version, deltas []Delta) error {
	existing, ok := m.tree.Get(v.encode())
	if !ok {
		return abortf("append_deltas: version has no delta map entry")
	}
	buf := append(append([]byte(nil), existing...), EncodeDeltaSet(deltas)...)
	m.tree.Insert(v.encode(), buf)
	return nil
}

// PrependDeltas requires v to already have an entry; it writes
// encode(deltas) ‖ existing. Panics if v is missing: every call site reaches
// v by following a structural forest pointer, so a miss here is corruption,
// not caller error.
func (m DeltaMap) PrependDeltas(v Version, deltas []Delta) {
	existing, ok := m.tree.Get(v.encode())
	if !ok {
		corrupt("prepend_deltas: followed pointer to version with no delta map entry")
	}
	buf := append(EncodeDeltaSet(deltas), existing...)
	if err := m.tree.Insert(v.encode(), buf); err != nil {
		corrupt("delta map write failed: " + err.Error())
	}
}
