// Package token generates opaque, unguessable session tokens.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// Source produces one opaque token per call. Implementations must be safe
// for concurrent use.
type Source interface {
	Token() (string, error)
}

// tokenBytes matches the entropy of the tokens the clients already accept
// (24 random bytes, URL-safe base64).
const tokenBytes = 24

// Random is the production Source backed by crypto/rand.
type Random struct{}

func (Random) Token() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
