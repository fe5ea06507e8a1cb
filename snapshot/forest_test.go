package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/govetachun/snapshotforest/forest"
	"github.com/govetachun/snapshotforest/storage"
)

func TestForestEndToEndOverRealEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	engine, err := storage.Open(path)
	require.NoError(t, err)
	defer engine.Close()

	snaps := Open(engine, "snaps")

	var v0, v1 forest.Version
	err = snaps.Update("data", func(host forest.Host, f forest.Forest, data forest.Tree) error {
		var err error
		v0, err = f.CreateSnapshotTree(host)
		if err != nil {
			return err
		}

		ins1, err := forest.InsertDelta([]byte("k1"), []byte("v1"))
		if err != nil {
			return err
		}
		ins2, err := forest.InsertDelta([]byte("k2"), []byte("v2"))
		if err != nil {
			return err
		}
		v1, err = f.CreateSnapshot(host, data, v0, []forest.Delta{ins1, ins2})
		if err != nil {
			return err
		}

		val, ok := data.Get([]byte("k1"))
		require.True(t, ok)
		require.Equal(t, "v1", string(val))
		return nil
	})
	require.NoError(t, err)

	err = snaps.Update("data", func(host forest.Host, f forest.Forest, data forest.Tree) error {
		return f.RestoreSnapshot(data, v1, v0)
	})
	require.NoError(t, err)

	err = snaps.View("data", func(host forest.Host, f forest.Forest, data forest.Tree) error {
		_, ok := data.Get([]byte("k1"))
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestForestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	engine, err := storage.Open(path)
	require.NoError(t, err)

	snaps := Open(engine, "snaps")
	var root forest.Version
	err = snaps.Update("data", func(host forest.Host, f forest.Forest, data forest.Tree) error {
		var err error
		root, err = f.CreateSnapshotTree(host)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	engine2, err := storage.Open(path)
	require.NoError(t, err)
	defer engine2.Close()
	snaps2 := Open(engine2, "snaps")

	err = snaps2.View("data", func(host forest.Host, f forest.Forest, data forest.Tree) error {
		versions := f.Versions.CollectVersions()
		require.Equal(t, []forest.Version{root}, versions)
		require.True(t, f.Deltas.IsCurrent(root))
		return nil
	})
	require.NoError(t, err)
}
