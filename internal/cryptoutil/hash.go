package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256Bytes returns the raw SHA-256 digest of data.
func SHA256Bytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SHA256HexString is a convenience wrapper over SHA256Hex for string input.
func SHA256HexString(s string) string {
	return SHA256Hex([]byte(s))
}
