package forest

import "sort"

// memHost is an in-memory Host used by this package's own tests: a reference
// map bound to the same interface as the real store, rather than standing
// up a real storage.Engine for every test.
type memHost struct {
	trees  map[string]*memTree
	nextID uint64
}

func newMemHost() *memHost {
	return &memHost{trees: map[string]*memTree{}}
}

func (h *memHost) Tree(name string) Tree {
	t, ok := h.trees[name]
	if !ok {
		t = &memTree{data: map[string][]byte{}}
		h.trees[name] = t
	}
	return t
}

func (h *memHost) NextID() (uint64, error) {
	h.nextID++
	if Version(h.nextID) == NullVersion {
		h.nextID++
	}
	return h.nextID, nil
}

type memTree struct {
	data map[string][]byte
}

func (t *memTree) Get(key []byte) ([]byte, bool) {
	v, ok := t.data[string(key)]
	return v, ok
}

func (t *memTree) Insert(key, val []byte) error {
	cp := append([]byte(nil), val...)
	t.data[string(key)] = cp
	return nil
}

func (t *memTree) Delete(key []byte) bool {
	_, ok := t.data[string(key)]
	delete(t.data, string(key))
	return ok
}

func (t *memTree) Ascend(fn func(key, val []byte) bool) {
	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), t.data[k]) {
			return
		}
	}
}
