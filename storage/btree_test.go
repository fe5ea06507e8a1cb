package storage

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// memPages backs a btree with an in-memory page map, so split/merge/delete
// logic can be exercised without a real mmap'd file.
type memPages struct {
	pages map[uint64]bnode
	next  uint64
}

func newMemBTree() (*btree, *memPages) {
	mp := &memPages{pages: map[uint64]bnode{}}
	t := &btree{
		get: func(ptr uint64) bnode {
			n, ok := mp.pages[ptr]
			if !ok {
				panic("page not found")
			}
			return n
		},
		new: func(n bnode) uint64 {
			mp.next++
			ptr := mp.next
			cp := make([]byte, len(n.data))
			copy(cp, n.data)
			mp.pages[ptr] = bnode{data: cp}
			return ptr
		},
		del: func(ptr uint64) {
			delete(mp.pages, ptr)
		},
	}
	return t, mp
}

func TestBTreeInsertGet(t *testing.T) {
	bt, _ := newMemBTree()
	require.NoError(t, bt.Insert([]byte("a"), []byte("1")))
	require.NoError(t, bt.Insert([]byte("b"), []byte("2")))

	val, ok := bt.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, "1", string(val))

	_, ok = bt.Get([]byte("missing"))
	require.False(t, ok)
}

func TestBTreeUpdateExistingKey(t *testing.T) {
	bt, _ := newMemBTree()
	require.NoError(t, bt.Insert([]byte("a"), []byte("1")))
	require.NoError(t, bt.Insert([]byte("a"), []byte("2")))

	val, ok := bt.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, "2", string(val))
}

func TestBTreeRejectsEmptyKey(t *testing.T) {
	bt, _ := newMemBTree()
	err := bt.Insert(nil, []byte("v"))
	require.Error(t, err)
}

func TestBTreeManyInsertsAndAscend(t *testing.T) {
	bt, _ := newMemBTree()
	ref := map[string]string{}
	for i := 0; i < 500; i++ {
		k, v := fmt.Sprintf("key-%04d", i), fmt.Sprintf("val-%d", i)
		require.NoError(t, bt.Insert([]byte(k), []byte(v)))
		ref[k] = v
	}

	var gotKeys []string
	bt.Ascend(func(key, val []byte) bool {
		gotKeys = append(gotKeys, string(key))
		require.Equal(t, ref[string(key)], string(val))
		return true
	})
	require.Len(t, gotKeys, len(ref))
	for i := 1; i < len(gotKeys); i++ {
		require.Less(t, gotKeys[i-1], gotKeys[i])
	}
}

func TestBTreeDeleteShrinksAndMerges(t *testing.T) {
	bt, _ := newMemBTree()
	ref := map[string]string{}
	for i := 0; i < 300; i++ {
		k, v := fmt.Sprintf("key-%04d", i), fmt.Sprintf("val-%d", i)
		require.NoError(t, bt.Insert([]byte(k), []byte(v)))
		ref[k] = v
	}

	r := rand.New(rand.NewSource(1))
	keys := make([]string, 0, len(ref))
	for k := range ref {
		keys = append(keys, k)
	}
	r.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, k := range keys[:200] {
		require.True(t, bt.Delete([]byte(k)))
		delete(ref, k)
	}

	for k, v := range ref {
		val, ok := bt.Get([]byte(k))
		require.True(t, ok)
		require.Equal(t, v, string(val))
	}

	var count int
	bt.Ascend(func(key, val []byte) bool { count++; return true })
	require.Equal(t, len(ref), count)
}

func TestBTreeDeleteMissingKey(t *testing.T) {
	bt, _ := newMemBTree()
	require.NoError(t, bt.Insert([]byte("a"), []byte("1")))
	require.False(t, bt.Delete([]byte("nope")))
}
