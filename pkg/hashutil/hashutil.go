package hashutil

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Key returns the blake3 digest of data, usable as a map key.
func Key(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// Hex returns the blake3 digest of data as a hex string.
func Hex(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}
