// Package snapshot is the application glue layer outside the forest core:
// it wires a storage.Engine transaction to forest.Host and gives callers
// one place to open a named forest and run transactions against it and a
// caller-owned data tree, mirroring the opening/naming convenience of an
// open_snapshot_forest-style helper.
package snapshot

import (
	"github.com/govetachun/snapshotforest/forest"
	"github.com/govetachun/snapshotforest/storage"
)

// txnHost adapts one *storage.Txn to forest.Host for the lifetime of a
// single transaction.
type txnHost struct{ tx *storage.Txn }

func (h txnHost) Tree(name string) forest.Tree { return h.tx.Tree(name) }
func (h txnHost) NextID() (uint64, error)      { return h.tx.NextID() }

// Forest pairs a storage.Engine with a forest name; Update opens a fresh
// forest.Forest bound to each transaction's host, since forest.Forest's
// tree handles are only valid for the transaction that produced them.
type Forest struct {
	engine *storage.Engine
	name   string
}

// Open returns a Forest named name, backed by engine. It does not itself
// start a transaction or touch disk; trees are created lazily on first use
// inside Update.
func Open(engine *storage.Engine, name string) *Forest {
	return &Forest{engine: engine, name: name}
}

// Update runs fn inside one ACID transaction spanning the version forest,
// delta map, and the named data tree. fn receives the forest.Host (needed
// by CreateSnapshotTree/CreateSnapshot to mint new version IDs), the opened
// Forest, and the data tree. An error returned from fn rolls the
// transaction back and is propagated to the caller unchanged.
func (f *Forest) Update(dataTree string, fn func(host forest.Host, f forest.Forest, data forest.Tree) error) error {
	return f.engine.Update(func(tx *storage.Txn) error {
		host := txnHost{tx: tx}
		ff := forest.Open(host, f.name)
		data := tx.Tree(dataTree)
		return fn(host, ff, data)
	})
}

// View runs fn inside a read-only transaction; writes fn makes are
// discarded when it returns.
func (f *Forest) View(dataTree string, fn func(host forest.Host, f forest.Forest, data forest.Tree) error) error {
	return f.engine.View(func(tx *storage.Txn) error {
		host := txnHost{tx: tx}
		ff := forest.Open(host, f.name)
		data := tx.Tree(dataTree)
		return fn(host, ff, data)
	})
}
