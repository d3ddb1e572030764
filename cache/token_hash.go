package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a session token before it is used as a store key, so raw
// tokens are never persisted and keys stay a fixed length.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
