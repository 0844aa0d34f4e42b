package translator

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashText computes the SHA-256 hash of text exactly as given.
func HashText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// CacheKey derives the result-cache key for translating text from source to
// target. Language codes are case-insensitive; the text is not normalised.
func CacheKey(source, target, text string) string {
	return strings.ToLower(source) + ":" + strings.ToLower(target) + ":" + HashText(text)
}
