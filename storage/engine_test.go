package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngineUpdateAndGetAcrossTrees(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	e, err := Open(path)
	require.NoError(t, err)
	defer e.Close()

	err = e.Update(func(tx *Txn) error {
		if err := tx.Tree("versions").Insert([]byte("v1"), []byte("node1")); err != nil {
			return err
		}
		return tx.Tree("data").Insert([]byte("key"), []byte("value"))
	})
	require.NoError(t, err)

	err = e.Update(func(tx *Txn) error {
		val, ok := tx.Tree("versions").Get([]byte("v1"))
		require.True(t, ok)
		require.Equal(t, "node1", string(val))
		val, ok = tx.Tree("data").Get([]byte("key"))
		require.True(t, ok)
		require.Equal(t, "value", string(val))
		return nil
	})
	require.NoError(t, err)
}

func TestEnginePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	e, err := Open(path)
	require.NoError(t, err)

	err = e.Update(func(tx *Txn) error {
		return tx.Tree("data").Insert([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e2, err := Open(path)
	require.NoError(t, err)
	defer e2.Close()

	err = e2.Update(func(tx *Txn) error {
		val, ok := tx.Tree("data").Get([]byte("k"))
		require.True(t, ok)
		require.Equal(t, "v", string(val))
		return nil
	})
	require.NoError(t, err)
}

func TestEngineUpdateRollsBackOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	e, err := Open(path)
	require.NoError(t, err)
	defer e.Close()

	sentinel := errDeliberate
	err = e.Update(func(tx *Txn) error {
		if err := tx.Tree("data").Insert([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	err = e.Update(func(tx *Txn) error {
		_, ok := tx.Tree("data").Get([]byte("k"))
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestEngineUpdateRecoversFromPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	e, err := Open(path)
	require.NoError(t, err)
	defer e.Close()

	require.Panics(t, func() {
		e.Update(func(tx *Txn) error {
			tx.Tree("data").Insert([]byte("k"), []byte("v"))
			panic("corruption")
		})
	})

	// engine must still be usable after a panic unwound the transaction.
	err = e.Update(func(tx *Txn) error {
		_, ok := tx.Tree("data").Get([]byte("k"))
		require.False(t, ok)
		return tx.Tree("data").Insert([]byte("k2"), []byte("v2"))
	})
	require.NoError(t, err)
}

func TestTxnNextIDMonotonicAndSkipsNullVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	e, err := Open(path)
	require.NoError(t, err)
	defer e.Close()

	var ids []uint64
	err = e.Update(func(tx *Txn) error {
		for i := 0; i < 5; i++ {
			id, err := tx.NextID()
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	require.NoError(t, err)
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i])
	}
	for _, id := range ids {
		require.NotEqual(t, ^uint64(0), id)
	}
}

var errDeliberate = deliberateError{}

type deliberateError struct{}

func (deliberateError) Error() string { return "deliberate test error" }
