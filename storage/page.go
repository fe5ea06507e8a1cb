package storage

import (
	"bytes"
	"encoding/binary"

	"github.com/govetachun/snapshotforest/internal/assert"
)

// Page layout: a fixed 4-byte header (node type + key count), followed by a
// pointer array (all zero in leaves), an offset array, then length-prefixed
// key/value pairs packed back to back.
const (
	bnodeNode = 1 // internal node: pointers to children
	bnodeLeaf = 2 // leaf node: keys and values
)

const (
	pageSize    = 4096
	maxKeySize  = 1000
	maxValSize  = 3000
	pageHeader  = 4 // type(2B) + nkeys(2B)
	pointerSize = 8
	offsetSize  = 2
)

func init() {
	// One key/value pair must always fit on a single page by itself, even at
	// max size, so a split never has to produce an overflowing piece.
	entryMax := pageHeader + pointerSize + offsetSize + 2 + 2 + maxKeySize + maxValSize
	if entryMax > pageSize {
		panic("storage: page size too small for max key/value size")
	}
}

// bnode is a single on-disk page, decoded lazily through accessor methods.
// It owns its backing bytes; callers that want a new version of a node
// allocate a fresh bnode and copy into it (copy-on-write).
type bnode struct {
	data []byte
}

func newBNode() bnode {
	return bnode{data: make([]byte, pageSize)}
}

func (n bnode) btype() uint16 {
	return binary.LittleEndian.Uint16(n.data[0:2])
}

func (n bnode) nkeys() uint16 {
	return binary.LittleEndian.Uint16(n.data[2:4])
}

func (n bnode) setHeader(btype, nkeys uint16) {
	binary.LittleEndian.PutUint16(n.data[0:2], btype)
	binary.LittleEndian.PutUint16(n.data[2:4], nkeys)
}

func (n bnode) getPtr(idx uint16) uint64 {
	assert.Assert(idx < n.nkeys(), "bnode: pointer index out of bounds")
	pos := pageHeader + uint32(idx)*pointerSize
	return binary.LittleEndian.Uint64(n.data[pos:])
}

func (n bnode) setPtr(idx uint16, val uint64) {
	assert.Assert(idx < n.nkeys(), "bnode: pointer index out of bounds")
	pos := pageHeader + uint32(idx)*pointerSize
	binary.LittleEndian.PutUint64(n.data[pos:], val)
}

func (n bnode) offsetPos(idx uint16) uint32 {
	assert.Assert(1 <= idx && idx <= n.nkeys(), "bnode: offset index out of bounds")
	return pageHeader + uint32(n.nkeys())*pointerSize + uint32(idx-1)*offsetSize
}

func (n bnode) getOffset(idx uint16) uint16 {
	if idx == 0 {
		return 0
	}
	return binary.LittleEndian.Uint16(n.data[n.offsetPos(idx):])
}

func (n bnode) setOffset(idx, val uint16) {
	binary.LittleEndian.PutUint16(n.data[n.offsetPos(idx):], val)
}

// kvPos returns the byte offset of the idx'th key/value pair.
func (n bnode) kvPos(idx uint16) uint32 {
	assert.Assert(idx <= n.nkeys(), "bnode: kv index out of bounds")
	return pageHeader + uint32(n.nkeys())*(pointerSize+offsetSize) + uint32(n.getOffset(idx))
}

func (n bnode) getKey(idx uint16) []byte {
	pos := n.kvPos(idx)
	klen := binary.LittleEndian.Uint16(n.data[pos:])
	return n.data[pos+4:][:klen]
}

func (n bnode) getVal(idx uint16) []byte {
	pos := n.kvPos(idx)
	klen := binary.LittleEndian.Uint16(n.data[pos+0:])
	vlen := binary.LittleEndian.Uint16(n.data[pos+2:])
	return n.data[pos+4+uint32(klen):][:vlen]
}

// nbytes is the size of the node if it were trimmed to its used content.
func (n bnode) nbytes() uint32 {
	return n.kvPos(n.nkeys())
}

func appendKV(n bnode, idx uint16, ptr uint64, key, val []byte) {
	n.setPtr(idx, ptr)
	pos := n.kvPos(idx)
	binary.LittleEndian.PutUint16(n.data[pos+0:], uint16(len(key)))
	binary.LittleEndian.PutUint16(n.data[pos+2:], uint16(len(val)))
	copy(n.data[pos+4:], key)
	copy(n.data[pos+4+uint32(len(key)):], val)
	n.setOffset(idx+1, n.getOffset(idx)+4+uint16(len(key))+uint16(len(val)))
}

// pageWriter builds a fresh page by copying entry ranges out of existing
// pages and appending new entries, tracking the next free write slot itself
// so callers never have to juggle destination indices by hand.
type pageWriter struct {
	dst bnode
	idx uint16
}

func newPageWriter(dst bnode, btype, nkeys uint16) *pageWriter {
	dst.setHeader(btype, nkeys)
	return &pageWriter{dst: dst}
}

func (w *pageWriter) put(ptr uint64, key, val []byte) {
	appendKV(w.dst, w.idx, ptr, key, val)
	w.idx++
}

func (w *pageWriter) copyFrom(src bnode, from, n uint16) {
	for i := uint16(0); i < n; i++ {
		w.put(src.getPtr(from+i), src.getKey(from+i), src.getVal(from+i))
	}
}

// lookupLE returns the largest idx such that node.getKey(idx) <= key, found
// by binary search over the node's sorted, unique keys.
func lookupLE(n bnode, key []byte) uint16 {
	lo, hi := 0, int(n.nkeys())-1
	found := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if bytes.Compare(n.getKey(uint16(mid)), key) <= 0 {
			found = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return uint16(found)
}
