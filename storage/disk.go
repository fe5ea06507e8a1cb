package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"github.com/govetachun/snapshotforest/internal/assert"
)

// On-disk layout: page 0 is the master page, fixed size, rewritten on every
// commit. Everything past it is either live data pages, free-list pages, or
// garbage awaiting reuse. The master page points at a catalog b-tree (name ->
// root pointer) rather than one fixed tree, so one engine can host the
// version forest, delta map, and caller data tree side by side.
const dbSig = "snapshotforestDB01"

// masterPage layout, little-endian throughout:
//
//	sig          24B  (dbSig, NUL-padded)
//	catalogRoot   8B  page pointer to the catalog btree's root (0 if empty)
//	pageUsed      8B  number of pages allocated in the file so far
//	flHead        8B  free-list head page (0 if empty)
//	flHeadSeq     8B
//	flTailPage    8B
//	flTailSeq     8B
//	flMaxSeq      8B
//	nextID        8B  monotonic counter behind Txn.NextID
const masterPageSize = 24 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 8

type mmapState struct {
	file  int // total bytes mapped
	chunk []byte
}

// disk owns the memory-mapped file and raw page allocation. It never
// interprets page contents beyond the master page; bnode/btree/freeList
// layer on top of pageGet/pageAppend/pageDel.
type disk struct {
	fp   *os.File
	mmap mmapState

	pageUsed uint64 // pages allocated, including freed-but-not-reused ones
	flushed  uint64 // pages written to the file so far (<= pageUsed)

	catalogRoot uint64
	nextID      uint64 // monotonic counter for Txn.NextID, persisted in the master page
	free        freeList

	temp map[uint64][]byte // pages created/overwritten by the in-flight transaction
}

func openDisk(path string) (*disk, error) {
	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	d := &disk{fp: fp, temp: map[uint64][]byte{}}
	if err := d.mmapInit(); err != nil {
		fp.Close()
		return nil, err
	}
	d.free.get = d.pageGet
	d.free.new = d.pageAppend
	d.free.use = d.pageUse
	if err := d.loadMaster(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *disk) mmapInit() error {
	fi, err := d.fp.Stat()
	if err != nil {
		return fmt.Errorf("storage: stat: %w", err)
	}
	size := fi.Size()
	if size == 0 {
		// brand-new file: reserve page 0 for the master page.
		if err := syscall.Fallocate(int(d.fp.Fd()), 0, 0, pageSize); err != nil {
			return fmt.Errorf("storage: fallocate: %w", err)
		}
		size = pageSize
	}
	if size%pageSize != 0 {
		return fmt.Errorf("storage: file size %d is not a multiple of the page size", size)
	}
	mmapSize := 64 * pageSize
	for mmapSize < int(size) {
		mmapSize *= 2
	}
	chunk, err := syscall.Mmap(int(d.fp.Fd()), 0, mmapSize, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("storage: mmap: %w", err)
	}
	d.mmap = mmapState{file: mmapSize, chunk: chunk}
	d.flushed = uint64(size / pageSize)
	d.pageUsed = d.flushed
	return nil
}

// extendMmap doubles the mapping until it covers npages pages.
func (d *disk) extendMmap(npages int) error {
	if npages*pageSize <= d.mmap.file {
		return nil
	}
	newSize := d.mmap.file
	for newSize < npages*pageSize {
		newSize *= 2
	}
	chunk, err := syscall.Mmap(int(d.fp.Fd()), 0, newSize, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("storage: remap: %w", err)
	}
	if err := syscall.Munmap(d.mmap.chunk); err != nil {
		return fmt.Errorf("storage: unmap: %w", err)
	}
	d.mmap = mmapState{file: newSize, chunk: chunk}
	return nil
}

func (d *disk) extendFile(npages int) error {
	filePages := int(d.flushed)
	if filePages >= npages {
		return nil
	}
	grow := npages - filePages
	// grow by at least minGrowth pages at a time.
	const minGrowth = 64
	if grow < minGrowth {
		grow = minGrowth
	}
	newSize := (filePages + grow) * pageSize
	return syscall.Fallocate(int(d.fp.Fd()), 0, 0, int64(newSize))
}

// pageGet reads a page, preferring the in-flight transaction's buffered copy.
func (d *disk) pageGet(ptr uint64) bnode {
	if data, ok := d.temp[ptr]; ok {
		return bnode{data: data}
	}
	return d.pageRead(ptr)
}

func (d *disk) pageRead(ptr uint64) bnode {
	assert.Assert(ptr < d.pageUsed, "storage: page pointer out of range")
	start := ptr * pageSize
	return bnode{data: d.mmap.chunk[start : start+pageSize]}
}

// pageAppend allocates a new page for node, preferring a free-list slot.
func (d *disk) pageAppend(node bnode) uint64 {
	if ptr, ok := d.free.Pop(); ok {
		d.pageUse(ptr, node)
		return ptr
	}
	ptr := d.pageUsed
	d.pageUsed++
	d.pageUse(ptr, node)
	return ptr
}

func (d *disk) pageUse(ptr uint64, node bnode) {
	d.temp[ptr] = node.data
}

// pageDel marks ptr as reusable by a future pageAppend, once the current
// transaction commits.
func (d *disk) pageDel(ptr uint64) {
	d.free.Add(ptr)
}

// flush writes every buffered page to the mmap, growing the file/mapping
// first if the transaction allocated past its end.
func (d *disk) flush() error {
	if d.pageUsed > uint64(d.mmap.file/pageSize) {
		if err := d.extendMmap(int(d.pageUsed)); err != nil {
			return err
		}
	}
	if err := d.extendFile(int(d.pageUsed)); err != nil {
		return err
	}
	for ptr, data := range d.temp {
		start := ptr * pageSize
		copy(d.mmap.chunk[start:start+pageSize], data)
	}
	d.temp = map[uint64][]byte{}
	d.flushed = d.pageUsed
	return nil
}

func (d *disk) sync() error {
	return d.fp.Sync()
}

// loadMaster reads page 0, or initializes a fresh one for a brand-new file.
func (d *disk) loadMaster() error {
	data := d.mmap.chunk[:masterPageSize]
	var zero [masterPageSize]byte
	if string(data) == string(zero[:]) {
		// fresh file: nothing committed yet.
		d.catalogRoot = 0
		return nil
	}
	sig := data[:24]
	expect := make([]byte, 24)
	copy(expect, dbSig)
	if string(sig) != string(expect) {
		return fmt.Errorf("storage: bad file signature")
	}
	d.catalogRoot = binary.LittleEndian.Uint64(data[24:32])
	d.pageUsed = binary.LittleEndian.Uint64(data[32:40])
	d.flushed = d.pageUsed
	d.free.headPage = binary.LittleEndian.Uint64(data[40:48])
	d.free.headSeq = binary.LittleEndian.Uint64(data[48:56])
	d.free.tailPage = binary.LittleEndian.Uint64(data[56:64])
	d.free.tailSeq = binary.LittleEndian.Uint64(data[64:72])
	d.free.maxSeq = binary.LittleEndian.Uint64(data[72:80])
	d.nextID = binary.LittleEndian.Uint64(data[80:88])
	return nil
}

// storeMaster writes the master page straight into the mapped page 0 (not
// the buffered update set); it still needs a sync to reach disk.
func (d *disk) storeMaster() {
	var data [masterPageSize]byte
	copy(data[:24], dbSig)
	binary.LittleEndian.PutUint64(data[24:32], d.catalogRoot)
	binary.LittleEndian.PutUint64(data[32:40], d.pageUsed)
	binary.LittleEndian.PutUint64(data[40:48], d.free.headPage)
	binary.LittleEndian.PutUint64(data[48:56], d.free.headSeq)
	binary.LittleEndian.PutUint64(data[56:64], d.free.tailPage)
	binary.LittleEndian.PutUint64(data[64:72], d.free.tailSeq)
	binary.LittleEndian.PutUint64(data[72:80], d.free.maxSeq)
	binary.LittleEndian.PutUint64(data[80:88], d.nextID)
	copy(d.mmap.chunk[:masterPageSize], data[:])
}

func (d *disk) close() error {
	if err := syscall.Munmap(d.mmap.chunk); err != nil {
		return fmt.Errorf("storage: unmap: %w", err)
	}
	return d.fp.Close()
}
