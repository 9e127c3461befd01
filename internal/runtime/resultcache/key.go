package resultcache

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/drblury/commitlog/internal/runtime/catalog"
)

// Key identifies a cached job by the server it ran on and its request.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// keyDomain separates cache keys from any other BLAKE3 use of the same bytes.
var keyDomain = [32]byte{'c', 'o', 'm', 'm', 'i', 't', 'l', 'o', 'g', '.', 'r', 'e', 's', 'u', 'l', 't', 's', '.', 'v', '2'}

// KeyFor hashes namespace followed by the binary encoding of req. The
// encoding is deterministic, so equal requests produce equal keys within a
// namespace. Test order is significant. The namespace is length prefixed so
// no namespace and request pair collides with another.
func KeyFor(codec catalog.Codec, namespace string, req catalog.SubmitRequest) (Key, error) {
	data, err := codec.Marshal(&req)
	if err != nil {
		return Key{}, err
	}
	// NewKeyed only fails for keys that are not 32 bytes long.
	hasher, err := blake3.NewKeyed(keyDomain[:])
	if err != nil {
		panic("resultcache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(binary.AppendUvarint(nil, uint64(len(namespace))))
	_, _ = hasher.Write([]byte(namespace))
	_, _ = hasher.Write(data)
	var key Key
	copy(key[:], hasher.Sum(nil))
	return key, nil
}
