// File: internal/infra/security/nonce.go
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// NonceSource issues unpredictable per-call tokens. The token only works as a
// tamper detector if an attacker who controls the job text cannot guess it,
// hence crypto/rand rather than anything seeded.
type NonceSource struct {
	size int
}

func NewNonceSource() *NonceSource { return &NonceSource{size: 16} }

func (n *NonceSource) Next() (string, error) {
	buf := make([]byte, n.size)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
