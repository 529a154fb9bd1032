// Package checksum identifies file content for upload deduplication and
// blob change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the lowercase hex SHA-256 of data. Equal content always maps
// to the same 64-character string.
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
