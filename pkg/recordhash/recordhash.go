// Package recordhash derives the content identifier used to key medical
// records on the ledger.
package recordhash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a hash in hex characters.
const Size = sha256.Size * 2

// Hash returns the lowercase hex SHA-256 digest of patientID followed by payload.
// The two strings are concatenated without a separator, so ("ab","c") and
// ("a","bc") share a hash; callers that need disambiguation must encode it in
// the payload.
func Hash(patientID, payload string) string {
	sum := sha256.Sum256([]byte(patientID + payload))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s looks like a value produced by Hash.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
