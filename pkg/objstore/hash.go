package objstore

import (
	"github.com/basaltfs/gfs/pkg/core"
	"github.com/zeebo/blake3"
)

// objectKind tags the payload handed to hashObject so that a blob, a
// tree, and a commit with coincidentally identical bytes never collide
// on the same id — mirroring git's "<type> <size>\0" object header.
type objectKind byte

const (
	kindBlob objectKind = iota
	kindTree
	kindCommit
)

// hashObject computes the content id of a stored object. Unlike
// bureau's lib/artifact keyed BLAKE3 domains (one fixed key per
// concern, chunk/container/file), content addressing here has only
// one logical domain — the object store — so a single unkeyed BLAKE3
// hash of the kind-tagged payload is sufficient; the kind byte alone
// gives the cross-type separation that artifact hashing gets from
// distinct keys.
func hashObject(kind objectKind, payload []byte) core.ObjectID {
	h := blake3.New()
	h.Write([]byte{byte(kind)})
	h.Write(payload)
	sum := h.Sum(nil)
	var id core.ObjectID
	copy(id[:], sum)
	return id
}
