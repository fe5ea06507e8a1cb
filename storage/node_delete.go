package storage

import (
	"bytes"

	"github.com/govetachun/snapshotforest/internal/assert"
)

// treeDelete returns the updated subtree rooted at node with key removed,
// or the zero bnode (nil data) if key was not found.
func (t *btree) treeDelete(node bnode, key []byte) bnode {
	idx := lookupLE(node, key)
	switch node.btype() {
	case bnodeLeaf:
		if !bytes.Equal(key, node.getKey(idx)) {
			return bnode{}
		}
		return t.deleteLeaf(node, idx)
	case bnodeNode:
		return t.deleteChild(node, idx, key)
	default:
		panic("storage: invalid node type")
	}
}

func (t *btree) deleteLeaf(node bnode, idx uint16) bnode {
	out := newBNode()
	w := newPageWriter(out, bnodeLeaf, node.nkeys()-1)
	w.copyFrom(node, 0, idx)
	w.copyFrom(node, idx+1, node.nkeys()-(idx+1))
	return out
}

// deleteChild removes key from node's idx'th child, then either folds the
// shrunk child into a sibling or just wires the smaller child back in.
func (t *btree) deleteChild(node bnode, idx uint16, key []byte) bnode {
	kptr := node.getPtr(idx)
	updated := t.treeDelete(t.get(kptr), key)
	if len(updated.data) == 0 {
		return bnode{} // key not present
	}
	t.del(kptr)

	if sib, ok := t.mergeTarget(node, idx, updated); ok {
		return t.mergeIntoSibling(node, idx, sib, updated)
	}

	assert.Assert(updated.nkeys() > 0, "storage: deletion produced an empty child with no sibling to merge")
	out := newBNode()
	t.replaceChild(out, node, idx, []bnode{updated})
	return out
}

// sibling names which neighbor of a shrunk child it should merge with.
type sibling struct {
	pos  uint16
	page bnode
	left bool
}

// mergeTarget looks for a neighbor of node's idx'th child that updated (too
// small after a deletion) can fold into without the merged page overflowing.
func (t *btree) mergeTarget(node bnode, idx uint16, updated bnode) (sibling, bool) {
	if updated.nbytes() > pageSize/4 {
		return sibling{}, false
	}
	if idx > 0 {
		left := t.get(node.getPtr(idx - 1))
		if left.nbytes()+updated.nbytes()-pageHeader <= pageSize {
			return sibling{pos: idx - 1, page: left, left: true}, true
		}
	}
	if idx+1 < node.nkeys() {
		right := t.get(node.getPtr(idx + 1))
		if right.nbytes()+updated.nbytes()-pageHeader <= pageSize {
			return sibling{pos: idx + 1, page: right, left: false}, true
		}
	}
	return sibling{}, false
}

func (t *btree) mergeIntoSibling(node bnode, idx uint16, sib sibling, updated bnode) bnode {
	merged := newBNode()
	if sib.left {
		mergePages(merged, sib.page, updated)
	} else {
		mergePages(merged, updated, sib.page)
	}
	t.del(node.getPtr(sib.pos))

	at := idx
	if sib.left {
		at = sib.pos
	}
	out := newBNode()
	w := newPageWriter(out, bnodeNode, node.nkeys()-1)
	w.copyFrom(node, 0, at)
	w.put(t.new(merged), merged.getKey(0), nil)
	w.copyFrom(node, at+2, node.nkeys()-(at+2))
	return out
}

func mergePages(dst, left, right bnode) {
	w := newPageWriter(dst, left.btype(), left.nkeys()+right.nkeys())
	w.copyFrom(left, 0, left.nkeys())
	w.copyFrom(right, 0, right.nkeys())
}
