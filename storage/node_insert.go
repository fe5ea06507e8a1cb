package storage

import (
	"bytes"

	"github.com/govetachun/snapshotforest/internal/assert"
)

// treeInsert returns a new, possibly over-sized copy of node with key/val
// inserted or updated. The caller resolves any overflow with splitPage.
func (t *btree) treeInsert(node bnode, key, val []byte) bnode {
	idx := lookupLE(node, key)
	switch node.btype() {
	case bnodeLeaf:
		return t.insertLeaf(node, idx, key, val)
	case bnodeNode:
		return t.insertChild(node, idx, key, val)
	default:
		panic("storage: invalid node type")
	}
}

// insertLeaf writes key/val into a fresh copy of a leaf, either overwriting
// the entry at idx (key already present) or inserting a new one right after it.
func (t *btree) insertLeaf(node bnode, idx uint16, key, val []byte) bnode {
	out := bnode{data: make([]byte, 2*pageSize)} // may temporarily overflow a page
	if bytes.Equal(key, node.getKey(idx)) {
		w := newPageWriter(out, bnodeLeaf, node.nkeys())
		w.copyFrom(node, 0, idx)
		w.put(0, key, val)
		w.copyFrom(node, idx+1, node.nkeys()-(idx+1))
		return out
	}
	at := idx + 1
	w := newPageWriter(out, bnodeLeaf, node.nkeys()+1)
	w.copyFrom(node, 0, at)
	w.put(0, key, val)
	w.copyFrom(node, at, node.nkeys()-at)
	return out
}

// insertChild descends into node's idx'th child, inserts there, splits the
// (possibly over-sized) result, and wires the resulting 1+ pages back in.
func (t *btree) insertChild(node bnode, idx uint16, key, val []byte) bnode {
	kptr := node.getPtr(idx)
	kid := t.treeInsert(t.get(kptr), key, val)
	pieces := splitPage(kid)
	t.del(kptr)
	out := bnode{data: make([]byte, 2*pageSize)}
	t.replaceChild(out, node, idx, pieces)
	return out
}

// replaceChild rewrites old's idx'th child pointer with the kids produced by
// splitting whatever used to live there, writing the result into out.
func (t *btree) replaceChild(out, old bnode, idx uint16, kids []bnode) {
	w := newPageWriter(out, bnodeNode, old.nkeys()+uint16(len(kids))-1)
	w.copyFrom(old, 0, idx)
	for _, kid := range kids {
		w.put(t.new(kid), kid.getKey(0), nil)
	}
	w.copyFrom(old, idx+1, old.nkeys()-(idx+1))
}

// splitPage divides old into one or more page-sized pieces by greedily
// packing entries in key order: as many as fit per page, then a fresh one.
// A single key/value pair always fits on its own page (page.go's init
// check), so a piece can never be forced to overflow regardless of how
// the packing falls.
func splitPage(old bnode) []bnode {
	if old.nbytes() <= pageSize {
		out := old
		out.data = out.data[:pageSize]
		return []bnode{out}
	}
	assert.Assert(old.nkeys() >= 2, "storage: cannot split a node with fewer than 2 keys")

	var pages []bnode
	for start := uint16(0); start < old.nkeys(); {
		end := start
		size := uint32(pageHeader)
		for end < old.nkeys() {
			cost := uint32(pointerSize+offsetSize+4) + uint32(len(old.getKey(end))) + uint32(len(old.getVal(end)))
			if end > start && size+cost > pageSize {
				break
			}
			size += cost
			end++
		}
		page := newBNode()
		w := newPageWriter(page, old.btype(), end-start)
		w.copyFrom(old, start, end-start)
		pages = append(pages, page)
		start = end
	}
	return pages
}
