package storage

// Tree is one named ordered tree inside an engine: the version forest, the
// delta map, or the caller's own data tree. It satisfies forest.Tree without
// this package importing forest, keeping the dependency pointed one way.
type Tree struct {
	name string
	bt   *btree
}

func (t *Tree) Get(key []byte) ([]byte, bool) { return t.bt.Get(key) }
func (t *Tree) Insert(key, val []byte) error  { return t.bt.Insert(key, val) }
func (t *Tree) Delete(key []byte) bool        { return t.bt.Delete(key) }
func (t *Tree) Ascend(fn func(key, val []byte) bool) {
	t.bt.Ascend(fn)
}

// Txn is the single ACID unit of work passed to an Engine.Update callback.
// Its Tree method returns *Tree, so it does not satisfy forest.Host itself;
// the snapshot package wraps it in an adapter that does.
type Txn struct {
	d       *disk
	cat     catalog
	opened  map[string]*Tree
}

// Tree returns (creating if necessary) the named ordered tree, lazily rooted
// through the engine's catalog. The same *Tree is returned for repeated
// calls within one transaction, so writes made earlier in the transaction
// are visible to later reads of the same tree.
func (tx *Txn) Tree(name string) *Tree {
	if t, ok := tx.opened[name]; ok {
		return t
	}
	root, _ := tx.cat.lookup(name)
	bt := &btree{root: root, get: tx.d.pageGet, new: tx.d.pageAppend, del: tx.d.pageDel}
	t := &Tree{name: name, bt: bt}
	tx.opened[name] = t
	return t
}

// NextID returns a fresh monotonically increasing identifier, skipping the
// all-ones sentinel the forest package reserves for NullVersion.
func (tx *Txn) NextID() (uint64, error) {
	const nullVersion = ^uint64(0)
	tx.d.nextID++
	if tx.d.nextID == nullVersion {
		tx.d.nextID++
	}
	return tx.d.nextID, nil
}
