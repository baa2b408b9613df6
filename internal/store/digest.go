package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainRecord prefixes record digests. The version suffix allows a future
// algorithm change without colliding with existing journal digests.
const DomainRecord = "campusledger/record/v1"

// Digest computes the journal digest of a stored record value.
// Format: SHA256(domain + 0x00 + value)
// The null byte separator prevents domain/data boundary ambiguity.
func Digest(value []byte) string {
	h := sha256.New()
	h.Write([]byte(DomainRecord))
	h.Write([]byte{0x00})
	h.Write(value)
	return hex.EncodeToString(h.Sum(nil))
}
