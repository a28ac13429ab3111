package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum fingerprints raw file content. Hashing the bytes (not the filename
// or any metadata) means a file overwritten with identical content still
// counts as unchanged even when its timestamps differ.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShouldSkip reports whether a file can be skipped: only when force mode is
// off, a previous checksum exists, and it matches the new one. Force mode is
// enabled for a whole cycle when the catalog is empty (bootstrap).
func ShouldSkip(previous, current string, force bool) bool {
	if force {
		return false
	}
	return previous != "" && previous == current
}
