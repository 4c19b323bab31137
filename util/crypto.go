package util

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashToHexdigest computes BLAKE3-256 for given string and returns hex
func HashToHexdigest(content string) string {
	hash := blake3.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
