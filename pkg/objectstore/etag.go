package objectstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// ComputeETag returns the hex-encoded BLAKE3-256 digest of data.
// ETags are always computed over the uncompressed content.
func ComputeETag(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
