/*
Package randx generates random identifiers.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

// ResultIDLength is the length of a ResultID (a UUIDv4 without dashes).
const ResultIDLength = 32

// ResultID returns a fresh random UUIDv4 in 32-character lowercase hex form,
// used to name composed images.
func ResultID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsValidResultID reports whether id has the shape produced by ResultID.
func IsValidResultID(id string) bool {
	if len(id) != ResultIDLength {
		return false
	}
	for _, c := range id {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
