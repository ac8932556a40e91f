// Package hash implements the fixed-width content hash used to identify
// tree nodes and blobs, in the same [N]byte-with-Marshal/Unmarshal shape
// as common/crypto/address.Address.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Size is the size of a Hash in bytes.
const Size = 32

// ErrMalformed is returned when a hash is the wrong length.
var ErrMalformed = errors.New("hash: malformed hash")

// Hash is an opaque, fixed-width content hash.
type Hash [Size]byte

// NewFromBytes computes the content hash of data.
func NewFromBytes(data ...[]byte) Hash {
	h := sha256.New()
	for _, d := range data {
		_, _ = h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// MarshalBinary encodes the hash into binary form.
func (h *Hash) MarshalBinary() (data []byte, err error) {
	data = append([]byte{}, h[:]...)
	return
}

// UnmarshalBinary decodes a binary marshaled hash.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return ErrMalformed
	}
	copy(h[:], data)
	return nil
}

// Equal compares h against cmp for equality.
func (h Hash) Equal(cmp Hash) bool {
	return h == cmp
}

// IsEmpty returns true iff h is the zero hash.
func (h Hash) IsEmpty() bool {
	return h == Hash{}
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
