package storage

import (
	"fmt"
	"sync"
)

// Engine is one opened database file: a single mmap'd B+tree host behind a
// catalog of named trees, written through with a single writer mutex. A
// single-writer model is enough here since nothing in this domain needs
// concurrent long-lived read snapshots.
type Engine struct {
	mu   sync.Mutex
	d    *disk
	path string
}

// Option configures an Engine at Open time.
type Option func(*engineConfig)

type engineConfig struct{}

// WithMmapSize and WithSyncOnCommit are accepted for a configuration surface
// that matches what callers typically expect from an embedded engine; this
// engine always syncs on commit (anything else would violate the durability
// half of the ACID contract) and always sizes its mapping dynamically, so
// both are no-ops today.
func WithMmapSize(bytes int) Option      { return func(*engineConfig) {} }
func WithSyncOnCommit(sync bool) Option  { return func(*engineConfig) {} }

// Open opens or creates the database file at path.
func Open(path string, opts ...Option) (*Engine, error) {
	cfg := &engineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	d, err := openDisk(path)
	if err != nil {
		return nil, err
	}
	return &Engine{d: d, path: path}, nil
}

func (e *Engine) Close() error {
	return e.d.close()
}

// Update runs fn inside a single read/write transaction. fn's error return
// aborts the transaction and is propagated to the caller unchanged (a
// caller-visible logical abort); a panic inside fn discards all buffered
// writes and re-propagates after the engine's locks are released, preserving
// whatever invariant-violation signal the panic carried.
func (e *Engine) Update(fn func(*Txn) error) (err error) {
	e.mu.Lock()
	prevPageUsed := e.d.pageUsed
	prevFree := e.d.free
	prevCatalogRoot := e.d.catalogRoot

	rollback := func() {
		e.d.pageUsed = prevPageUsed
		e.d.free = prevFree
		e.d.catalogRoot = prevCatalogRoot
		e.d.temp = map[uint64][]byte{}
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			e.mu.Unlock()
			panic(r)
		}
	}()

	tx := &Txn{d: e.d, cat: e.d.openCatalog(), opened: map[string]*Tree{}}
	if err = fn(tx); err != nil {
		rollback()
		e.mu.Unlock()
		return err
	}

	for name, t := range tx.opened {
		if err = tx.cat.set(name, t.bt.root); err != nil {
			rollback()
			e.mu.Unlock()
			return newConflictError("commit", err)
		}
	}
	e.d.catalogRoot = tx.cat.tree.root

	if err = e.d.flush(); err != nil {
		rollback()
		e.mu.Unlock()
		return newConflictError("flush", err)
	}
	if err = e.d.sync(); err != nil {
		rollback()
		e.mu.Unlock()
		return newConflictError("sync data", err)
	}
	e.d.storeMaster()
	if err = e.d.sync(); err != nil {
		e.mu.Unlock()
		return newConflictError("sync master", err)
	}

	e.mu.Unlock()
	return nil
}

// View runs fn inside a read-only transaction: writes made by fn are never
// persisted. Useful for the forest package's read-only queries (IterVersions,
// FindPathToRoot) that have no business taking the writer lock for longer
// than a snapshot read.
func (e *Engine) View(fn func(*Txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	prevPageUsed := e.d.pageUsed
	prevFree := e.d.free
	prevCatalogRoot := e.d.catalogRoot
	defer func() {
		e.d.pageUsed = prevPageUsed
		e.d.free = prevFree
		e.d.catalogRoot = prevCatalogRoot
		e.d.temp = map[uint64][]byte{}
	}()
	tx := &Txn{d: e.d, cat: e.d.openCatalog(), opened: map[string]*Tree{}}
	if err := fn(tx); err != nil {
		return fmt.Errorf("storage: view: %w", err)
	}
	return nil
}
