package storage

import (
	"encoding/binary"

	"github.com/govetachun/snapshotforest/internal/assert"
)

// freeList is a linked list of pages holding recycled page pointers, so
// deleted pages are reused instead of growing the file forever: a small
// header (size and next, with unused padding) followed by up to flnCap
// pointers.
//
//	| size | unused | next | unused | pointers... |
//	| 2B   | 2B     | 8B   | 8B     | size*8B     |
const (
	flnHeader = 2 + 2 + 8 + 8
	flnCap    = (pageSize - flnHeader) / pointerSize
)

type freeList struct {
	get func(uint64) bnode
	new func(bnode) uint64
	use func(uint64, bnode)

	headPage uint64 // first node of the list, 0 if empty
	headSeq  uint64 // consumed index within the head node, for Pop bookkeeping
	tailPage uint64
	tailSeq  uint64

	maxSeq uint64 // bumped on every Add; persisted in the master page
}

func flnSize(n bnode) uint16      { return binary.LittleEndian.Uint16(n.data[0:2]) }
func flnNext(n bnode) uint64      { return binary.LittleEndian.Uint64(n.data[4:12]) }
func flnPtr(n bnode, idx int) uint64 {
	assert.Assert(idx < int(flnSize(n)), "freelist: pointer index out of bounds")
	pos := flnHeader + idx*pointerSize
	return binary.LittleEndian.Uint64(n.data[pos:])
}

func flnSetHeader(n bnode, size uint16, next uint64) {
	binary.LittleEndian.PutUint16(n.data[0:2], size)
	binary.LittleEndian.PutUint64(n.data[4:12], next)
}

func flnSetPtr(n bnode, idx int, ptr uint64) {
	assert.Assert(idx < flnCap, "freelist: pointer index out of bounds")
	pos := flnHeader + idx*pointerSize
	binary.LittleEndian.PutUint64(n.data[pos:], ptr)
}

// Pop removes and returns one page pointer from the list, or (0, false) if
// the list is empty.
func (fl *freeList) Pop() (uint64, bool) {
	if fl.headPage == 0 {
		return 0, false
	}
	node := fl.get(fl.headPage)
	ptr := flnPtr(node, int(fl.headSeq))
	fl.headSeq++
	if fl.headSeq >= uint64(flnSize(node)) {
		next := flnNext(node)
		if next == 0 {
			fl.headPage, fl.headSeq, fl.tailPage = 0, 0, 0
		} else {
			fl.headPage, fl.headSeq = next, 0
		}
	}
	return ptr, true
}

// Add appends ptr to the tail of the list, allocating a new tail node when
// the current one is full. Nodes holding the free list itself are never
// freed through the list (that would self-reference); callers recycle them
// directly via new/use.
func (fl *freeList) Add(ptr uint64) {
	if fl.tailPage == 0 {
		node := newBNode()
		flnSetHeader(node, 0, 0)
		fl.tailPage = fl.new(node)
		fl.headPage = fl.tailPage
	}
	node := fl.get(fl.tailPage)
	size := flnSize(node)
	if int(size) == flnCap {
		next := newBNode()
		flnSetHeader(next, 0, 0)
		nextPage := fl.new(next)
		flnSetHeader(node, size, nextPage)
		fl.use(fl.tailPage, node)
		fl.tailPage = nextPage
		node = next
		size = 0
	}
	flnSetPtr(node, int(size), ptr)
	flnSetHeader(node, size+1, flnNext(node))
	fl.use(fl.tailPage, node)
	fl.maxSeq++
}
