package shortener

import (
	"crypto/sha256"
	"encoding/hex"
)

// URLHash is a fixed-size digest of an original URL, used to index dedup lookups.
type URLHash string

// HashURL computes the hex-encoded SHA256 of the URL exactly as given.
// Dedup matches URLs byte for byte, so no normalization is applied.
func HashURL(rawURL string) URLHash {
	h := sha256.Sum256([]byte(rawURL))

	return URLHash(hex.EncodeToString(h[:]))
}
