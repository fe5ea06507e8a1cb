package forest

import "encoding/binary"

// Version identifies a node in the forest: a labelled snapshot identity.
type Version uint64

// NullVersion is the reserved sentinel meaning "no version" (used as the
// parent of a root). It is never generated as a real version ID.
const NullVersion Version = Version(^uint64(0))

func (v Version) encode() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}

func decodeVersion(b []byte) Version {
	return Version(binary.BigEndian.Uint64(b))
}
