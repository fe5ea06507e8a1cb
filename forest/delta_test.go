package forest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeltaSetRoundTrip(t *testing.T) {
	ins1, err := InsertDelta([]byte("k1"), []byte("v1"))
	require.NoError(t, err)
	ins2, err := InsertDelta([]byte("k2"), []byte("v2"))
	require.NoError(t, err)
	deltas := []Delta{ins1, RemoveDelta([]byte("k3")), ins2}

	encoded := EncodeDeltaSet(deltas)
	decoded, err := DecodeDeltaSet(encoded)
	require.NoError(t, err)
	require.Equal(t, deltas, decoded)
}

func TestDeltaSetEmpty(t *testing.T) {
	decoded, err := DecodeDeltaSet(EncodeDeltaSet(nil))
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestInsertDeltaRejectsEmptyValue(t *testing.T) {
	_, err := InsertDelta([]byte("k"), nil)
	require.Error(t, err)
}

func TestDeltaSetIterDetectsTruncation(t *testing.T) {
	ins, err := InsertDelta([]byte("k"), []byte("v"))
	require.NoError(t, err)
	encoded := EncodeDeltaSet([]Delta{ins})
	truncated := encoded[:len(encoded)-1]

	_, err = DecodeDeltaSet(truncated)
	require.Error(t, err)
}
