package binary

import (
	"crypto/ed25519"
	"encoding/binary"
)

// Fixed offset accessors for fields of an already bounds-checked record.
// Callers guarantee offset plus the field size is within src or dst.

// Key32At returns the 32 byte key at offset, aliasing src.
func Key32At(src []byte, offset int) ed25519.PublicKey {
	return ed25519.PublicKey(src[offset : offset+ed25519.PublicKeySize : offset+ed25519.PublicKeySize])
}

func PutKey32At(dst []byte, offset int, key []byte) {
	copy(dst[offset:offset+ed25519.PublicKeySize], key)
}

func Uint64At(src []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(src[offset:])
}

func PutUint64At(dst []byte, offset int, v uint64) {
	binary.LittleEndian.PutUint64(dst[offset:], v)
}

func BoolAt(src []byte, offset int) bool {
	return src[offset] != 0
}
