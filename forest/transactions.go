package forest

// applyDeltas applies the deltas encoded in buf to dataTree in order,
// collecting the reverse delta for each in the same (forward) order: for an
// Insert, the reverse is Insert(key, old) if key existed, else Remove(key);
// for a Remove, the reverse is the same rule. Reverse deltas are a per-key
// pre-image captured the first time the batch touches that key, so when the
// same key appears twice in one batch, the later reverse recorded is the
// earlier state;
// replaying reverses in this same stored order correctly unwinds to that
// state. Do not reorder.
func applyDeltas(dataTree Tree, buf []byte) []Delta {
	var reverse []Delta
	firstSeen := map[string]Delta{}
	it := NewDeltaSetIter(buf)
	for it.Next() {
		raw := it.Raw()
		key := raw.Key()
		old, existed := dataTree.Get(key)
		var rev Delta
		if existed {
			rev = Delta{Key: append([]byte(nil), key...), Value: append([]byte(nil), old...)}
		} else {
			rev = RemoveDelta(append([]byte(nil), key...))
		}
		if first, ok := firstSeen[string(key)]; ok {
			rev = first
		} else {
			firstSeen[string(key)] = rev
		}
		reverse = append(reverse, rev)

		if raw.IsRemove() {
			dataTree.Delete(key)
		} else {
			if err := dataTree.Insert(key, raw.Value()); err != nil {
				corrupt("apply_deltas: data tree write failed: " + err.Error())
			}
		}
	}
	if err := it.Err(); err != nil {
		corrupt("apply_deltas: " + err.Error())
	}
	return reverse
}

// Forest binds a VersionForest and DeltaMap pair together, mirroring the
// persistent layout of a named snapshot forest opened on a host.
type Forest struct {
	Versions VersionForest
	Deltas   DeltaMap
}

// Open returns the Forest backed by the two host trees named "{name}-versions"
// and "{name}-deltas", creating them empty on first use.
func Open(host Host, name string) Forest {
	return Forest{
		Versions: newVersionForest(host.Tree(name + "-versions")),
		Deltas:   newDeltaMap(host.Tree(name + "-deltas")),
	}
}

// CreateSnapshotTree creates a new root version with an empty (current)
// delta map entry, starting a fresh tree in the forest.
func (f Forest) CreateSnapshotTree(host Host) (Version, error) {
	v, err := f.Versions.CreateVersion(host, NullVersion)
	if err != nil {
		return 0, err
	}
	f.Deltas.WriteDeltas(v, nil)
	return v, nil
}

// CreateSnapshot applies deltas to dataTree, freezes currentV with the
// reverse deltas, and creates a new current child version under it.
// Aborts if currentV is not current; panics if deltas is empty (a snapshot
// must carry mutation; an empty one is a programmer error, not a runtime
// condition a caller should be able to trigger).
func (f Forest) CreateSnapshot(host Host, dataTree Tree, currentV Version, deltas []Delta) (Version, error) {
	if len(deltas) == 0 {
		corrupt("create_snapshot: deltas must be non-empty")
	}
	if !f.Deltas.IsCurrent(currentV) {
		return 0, abortf("create_snapshot: version is not current")
	}

	reverse := applyDeltas(dataTree, EncodeDeltaSet(deltas))
	f.Deltas.WriteDeltas(currentV, reverse)

	newV, err := f.Versions.CreateVersion(host, currentV)
	if err != nil {
		corrupt("create_snapshot: failed to create child of the just-frozen current version")
	}
	f.Deltas.WriteDeltas(newV, nil)
	return newV, nil
}

// nudge is one hop of restoration: pop target's deltas, apply them to
// dataTree, leave target with an empty (current) entry, and write the
// reverse deltas into the vacated-current neighbor.
func (f Forest) nudge(dataTree Tree, from, to Version) {
	buf, ok := f.Deltas.Remove(to)
	if !ok || len(buf) == 0 {
		corrupt("restore_snapshot: expected non-empty deltas at " + "neighbor version")
	}
	reverse := applyDeltas(dataTree, buf)
	f.Deltas.WriteDeltas(to, nil)
	f.Deltas.WriteDeltas(from, reverse)
}

// RestoreSnapshot walks the forest path from currentV to targetV, nudging
// the data tree one hop at a time until targetV is current. Aborts if
// currentV is not current; panics if currentV and targetV are in different
// trees (callers must ensure they share a tree).
func (f Forest) RestoreSnapshot(dataTree Tree, currentV, targetV Version) error {
	if !f.Deltas.IsCurrent(currentV) {
		return abortf("restore_snapshot: version is not current")
	}
	path, err := f.Versions.FindPathBetweenVersions(currentV, targetV)
	if err != nil {
		return err
	}
	if !path.Exists {
		corrupt("restore_snapshot: current and target versions are in different trees")
	}
	for i := 0; i < len(path.Path)-1; i++ {
		f.nudge(dataTree, path.Path[i], path.Path[i+1])
	}
	return nil
}

// DeleteSnapshot removes v from the forest, migrating its deltas either to
// every child (if the tree's current version is an ancestor of v) or to its
// parent (if no ancestor of v is current). Deleting the current version or
// a root aborts.
func (f Forest) DeleteSnapshot(v Version) error {
	node, ok := f.Versions.Get(v)
	if !ok {
		return abortf("delete_snapshot: version does not exist")
	}
	if node.isRoot() {
		return abortf("delete_snapshot: cannot delete a root version")
	}
	if f.Deltas.IsCurrent(v) {
		return abortf("delete_snapshot: cannot delete the current version")
	}

	ancestors, err := f.Versions.FindPathToRoot(v)
	if err != nil {
		corrupt("delete_snapshot: " + err.Error())
	}
	currentIsAncestor := false
	for _, a := range ancestors[1:] {
		if f.Deltas.IsCurrent(a) {
			currentIsAncestor = true
			break
		}
	}

	rawDeltas, ok := f.Deltas.Get(v)
	if !ok {
		corrupt("delete_snapshot: non-current version has no delta map entry")
	}
	deltas, decodeErr := DecodeDeltaSet(rawDeltas)
	if decodeErr != nil {
		corrupt("delete_snapshot: " + decodeErr.Error())
	}

	removed, err := f.Versions.RemoveVersion(v)
	if err != nil {
		// v is not a root (checked above), so RemoveVersion cannot abort here.
		corrupt("delete_snapshot: " + err.Error())
	}

	if currentIsAncestor {
		// deltas(v) describe the transition toward v from its parent; they
		// belong ahead of each child so restoring into a child replays them
		// first. Child order is preserved (open question 3).
		for _, child := range removed.Children {
			f.Deltas.PrependDeltas(child, deltas)
		}
	} else {
		// current descends from v: deltas(v) move away from current,
		// prepended onto the parent's own deltas.
		f.Deltas.PrependDeltas(removed.Parent, deltas)
	}

	f.Deltas.Remove(v)
	return nil
}

// DeleteSnapshotTree deletes root and every descendant, removing their
// delta map entries in the same transaction. A missing root is a no-op.
func (f Forest) DeleteSnapshotTree(root Version) {
	f.Versions.DeleteTree(root, func(v Version) {
		f.Deltas.Remove(v)
	})
}
