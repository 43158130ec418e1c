package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// PayloadHash returns the hex blake2b-256 digest of the given fields. Fields
// are NUL separated so ("ab","c") and ("a","bc") hash differently.
func PayloadHash(fields ...string) string {
	h, _ := blake2b.New256(nil)
	for i, field := range fields {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
