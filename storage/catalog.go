package storage

import "encoding/binary"

// catalog is the tree-of-trees: a btree keyed by tree name whose values are
// 8-byte little-endian root pointers for that tree's own btree. This is how
// one engine hosts several independently-rooted ordered trees (the version
// forest, the delta map, and the caller's data tree) behind one master page.
type catalog struct {
	tree btree
}

func (d *disk) openCatalog() catalog {
	return catalog{tree: btree{
		root: d.catalogRoot,
		get:  d.pageGet,
		new:  d.pageAppend,
		del:  d.pageDel,
	}}
}

func (c *catalog) lookup(name string) (uint64, bool) {
	val, ok := c.tree.Get([]byte(name))
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(val), true
}

func (c *catalog) set(name string, root uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], root)
	return c.tree.Insert([]byte(name), buf[:])
}
