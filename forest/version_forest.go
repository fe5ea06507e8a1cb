package forest

// VersionForest maps version IDs to version nodes, representing a disjoint
// union of rooted trees. It is a thin typed wrapper over a host Tree; every
// method below is safe to call only inside the transaction that produced
// the Host that built this wrapper.
type VersionForest struct {
	tree Tree
}

func newVersionForest(tree Tree) VersionForest {
	return VersionForest{tree: tree}
}

// Get returns the decoded node at v, or (zero, false) if v is unknown.
func (f VersionForest) Get(v Version) (VersionNode, bool) {
	buf, ok := f.tree.Get(v.encode())
	if !ok {
		return VersionNode{}, false
	}
	raw, err := decodeRawVersionNode(buf)
	if err != nil {
		corrupt(err.Error())
	}
	return raw.ToVersionNode(), true
}

func (f VersionForest) put(v Version, node VersionNode) {
	if err := f.tree.Insert(v.encode(), node.encode()); err != nil {
		corrupt("version forest write failed: " + err.Error())
	}
}

// CreateVersion generates a fresh version ID via host.NextID, writes a new
// orphan/child node for it, and, if parent is not NullVersion, appends the
// new ID to the parent's children. Aborts if parent is given but missing.
func (f VersionForest) CreateVersion(host Host, parent Version) (Version, error) {
	id, err := host.NextID()
	if err != nil {
		return 0, err
	}
	v := Version(id)
	if v == NullVersion {
		corrupt("host generated the null version sentinel")
	}

	if parent == NullVersion {
		f.put(v, newOrphan())
		return v, nil
	}

	parentNode, ok := f.Get(parent)
	if !ok {
		return 0, abortf("create_version: parent version does not exist")
	}
	f.put(parent, parentNode.withChildAppended(v))
	f.put(v, newWithParent(parent))
	return v, nil
}

// RemoveVersion re-parents v's children to v's parent, appends v's children
// (in order) to the new parent's children list, and deletes v. Aborts if v
// is a root. Returns the removed node so callers can inspect its former
// parent/children.
func (f VersionForest) RemoveVersion(v Version) (VersionNode, error) {
	node, ok := f.Get(v)
	if !ok {
		corrupt("remove_version: version does not exist")
	}
	if node.isRoot() {
		return VersionNode{}, abortf("remove_version: cannot remove a root version")
	}

	for _, child := range node.Children {
		childNode, ok := f.Get(child)
		if !ok {
			corrupt("remove_version: dangling child pointer")
		}
		f.put(child, VersionNode{Parent: node.Parent, Children: childNode.Children})
	}

	parentNode, ok := f.Get(node.Parent)
	if !ok {
		corrupt("remove_version: dangling parent pointer")
	}
	children := make([]Version, len(parentNode.Children), len(parentNode.Children)+len(node.Children))
	copy(children, parentNode.Children)
	for i, c := range parentNode.Children {
		if c == v {
			children = append(children[:i:i], parentNode.Children[i+1:]...)
			break
		}
	}
	children = append(children, node.Children...)
	f.put(node.Parent, VersionNode{Parent: parentNode.Parent, Children: children})

	f.tree.Delete(v.encode())
	return node, nil
}

// DeleteTree depth-first deletes root and every descendant, invoking
// onDelete for each removed version so callers can clean up associated
// state (the DeltaMap entry) in the same transaction. A missing root is a
// no-op.
func (f VersionForest) DeleteTree(root Version, onDelete func(Version)) {
	if _, ok := f.Get(root); !ok {
		return
	}
	stack := []Version{root}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := f.Get(v)
		if !ok {
			corrupt("delete_tree: dangling pointer to " + "version")
		}
		stack = append(stack, n.Children...)
		f.tree.Delete(v.encode())
		onDelete(v)
	}
}

// FindPathToRoot walks v's parent chain, returning [v, parent(v), ..., root].
// Aborts if v is missing.
func (f VersionForest) FindPathToRoot(v Version) ([]Version, error) {
	node, ok := f.Get(v)
	if !ok {
		return nil, abortf("find_path_to_root: version does not exist")
	}
	path := []Version{v}
	cur := node
	for !cur.isRoot() {
		next, ok := f.Get(cur.Parent)
		if !ok {
			corrupt("find_path_to_root: followed pointer to missing version")
		}
		path = append(path, cur.Parent)
		cur = next
	}
	return path, nil
}

// VersionPath is the result of FindPathBetweenVersions.
type VersionPath struct {
	Exists bool
	Path   []Version // valid only if Exists
}

// FindPathBetweenVersions computes the path start -> ... -> LCA -> ... ->
// finish within the same tree, or reports NoPathExists if start and finish
// are in different trees. Aborts if either endpoint is missing.
func (f VersionForest) FindPathBetweenVersions(start, finish Version) (VersionPath, error) {
	if start == finish {
		if _, ok := f.Get(start); !ok {
			return VersionPath{}, abortf("find_path_between_versions: version does not exist")
		}
		return VersionPath{Exists: true, Path: []Version{start}}, nil
	}

	startPath, err := f.FindPathToRoot(start)
	if err != nil {
		return VersionPath{}, err
	}
	finishPath, err := f.FindPathToRoot(finish)
	if err != nil {
		return VersionPath{}, err
	}
	if startPath[len(startPath)-1] != finishPath[len(finishPath)-1] {
		return VersionPath{Exists: false}, nil
	}

	// Scan both root-ward paths from the tail (root) inward, advancing
	// while they agree, to find the lowest common ancestor's index on each.
	si, fi := len(startPath)-1, len(finishPath)-1
	for si >= 0 && fi >= 0 && startPath[si] == finishPath[fi] {
		si--
		fi--
	}
	lcaStartIdx := si + 1

	path := append([]Version(nil), startPath[:lcaStartIdx+1]...)
	for i := fi; i >= 0; i-- {
		path = append(path, finishPath[i])
	}
	return VersionPath{Exists: true, Path: path}, nil
}

// IterVersions calls fn for every version ID currently in the forest, in
// ascending key order. fn returning false stops iteration early. This is a
// supplemented query (the host library surface promises "iterate all
// version IDs") with no single dedicated operation in the core algorithm
// description.
func (f VersionForest) IterVersions(fn func(Version) bool) {
	f.tree.Ascend(func(key, _ []byte) bool {
		return fn(decodeVersion(key))
	})
}

// CollectVersions materializes IterVersions into a slice, in ascending order.
func (f VersionForest) CollectVersions() []Version {
	var out []Version
	f.IterVersions(func(v Version) bool {
		out = append(out, v)
		return true
	})
	return out
}
