// Package token generates the opaque identifiers that bind a public URL to
// a stored image. Tokens carry no structure: no timestamp, no counter, no
// prefix. Knowing one token tells you nothing about any other.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// rawLen is the number of random bytes per token (256 bits of entropy).
// Encoded with base64 RawURLEncoding this yields a 43-character string.
const rawLen = 32

// Length is the length of every minted token in characters.
const Length = (rawLen*8 + 5) / 6

// ErrEntropy indicates the system random source failed. Callers must abort
// the operation; a token must never be minted from a degraded source.
var ErrEntropy = errors.New("token: entropy source unavailable")

// Generator mints tokens from crypto/rand.
type Generator struct{}

// NewGenerator returns a token generator backed by the system CSPRNG.
func NewGenerator() *Generator {
	return &Generator{}
}

// Mint returns a new URL-safe token. The charset is [A-Za-z0-9_-] with no
// padding, so the token needs no URL encoding.
func (g *Generator) Mint() (string, error) {
	buf := make([]byte, rawLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
