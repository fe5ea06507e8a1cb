package storage

import (
	"bytes"
	"fmt"
)

// btree is a copy-on-write B+tree addressed through three callbacks, so the
// same algorithm works whether pages live in memory (tests) or behind an
// mmap'd file (engine.go). root is a page pointer, 0 meaning empty.
type btree struct {
	root uint64
	get  func(uint64) bnode
	new  func(bnode) uint64
	del  func(uint64)
}

func checkLimit(key, val []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("storage: key must not be empty")
	}
	if len(key) > maxKeySize {
		return fmt.Errorf("storage: key of %d bytes exceeds max %d", len(key), maxKeySize)
	}
	if len(val) > maxValSize {
		return fmt.Errorf("storage: value of %d bytes exceeds max %d", len(val), maxValSize)
	}
	return nil
}

// Get looks up key, returning (value, true) if present.
func (t *btree) Get(key []byte) ([]byte, bool) {
	if t.root == 0 {
		return nil, false
	}
	node := t.get(t.root)
	for node.btype() == bnodeNode {
		node = t.get(node.getPtr(lookupLE(node, key)))
	}
	idx := lookupLE(node, key)
	if idx < node.nkeys() && bytes.Equal(node.getKey(idx), key) {
		return node.getVal(idx), true
	}
	return nil, false
}

// Insert creates or replaces key with val.
func (t *btree) Insert(key, val []byte) error {
	if err := checkLimit(key, val); err != nil {
		return err
	}
	if t.root == 0 {
		root := newBNode()
		root.setHeader(bnodeLeaf, 2)
		// a dummy first key covers the whole key space so lookupLE never
		// underflows below index 0.
		appendKV(root, 0, 0, nil, nil)
		appendKV(root, 1, 0, key, val)
		t.root = t.new(root)
		return nil
	}

	node := t.get(t.root)
	t.del(t.root)
	node = t.treeInsert(node, key, val)
	pieces := splitPage(node)
	if len(pieces) > 1 {
		root := newBNode()
		w := newPageWriter(root, bnodeNode, uint16(len(pieces)))
		for _, kid := range pieces {
			w.put(t.new(kid), kid.getKey(0), nil)
		}
		t.root = t.new(root)
	} else {
		t.root = t.new(pieces[0])
	}
	return nil
}

// Delete removes key, returning whether it was present.
func (t *btree) Delete(key []byte) bool {
	if t.root == 0 {
		return false
	}
	if err := checkLimit(key, nil); err != nil {
		return false
	}
	updated := t.treeDelete(t.get(t.root), key)
	if len(updated.data) == 0 {
		return false
	}
	t.del(t.root)
	if updated.btype() == bnodeNode && updated.nkeys() == 1 {
		t.root = updated.getPtr(0)
	} else {
		t.root = t.new(updated)
	}
	return true
}

// Ascend walks all key/value pairs in ascending key order, skipping the
// leading dummy key that covers the empty prefix. fn returning false stops
// the walk early.
func (t *btree) Ascend(fn func(key, val []byte) bool) {
	if t.root == 0 {
		return
	}
	ascendNode(t, t.get(t.root), fn)
}

func ascendNode(t *btree, node bnode, fn func(key, val []byte) bool) bool {
	switch node.btype() {
	case bnodeLeaf:
		for i := uint16(0); i < node.nkeys(); i++ {
			if len(node.getKey(i)) == 0 {
				continue // the sentinel empty key that covers the whole key space
			}
			if !fn(node.getKey(i), node.getVal(i)) {
				return false
			}
		}
		return true
	case bnodeNode:
		for i := uint16(0); i < node.nkeys(); i++ {
			if !ascendNode(t, t.get(node.getPtr(i)), fn) {
				return false
			}
		}
		return true
	default:
		panic("storage: invalid node type")
	}
}
