// File: internal/infra/security/hash.go
package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// CanonicalHash computes the trusted content hash of a prompt template.
// Hashing happens over the raw template text, before any placeholder
// substitution, so a stable template always yields a stable hash.
func CanonicalHash(templateText string) string {
	sum := sha256.Sum256([]byte(templateText))
	return hex.EncodeToString(sum[:])
}
