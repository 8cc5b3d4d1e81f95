package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the deduplication key for text: a hex SHA-256 digest
// of the text with whitespace runs collapsed to single spaces and the ends
// trimmed.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return hex.EncodeToString(sum[:])
}
