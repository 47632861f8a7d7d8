package form

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/gtank/cryptopasta"
)

var ErrInvalidToken = errors.New("invalid form token")

// TokenSigner issues and verifies form tokens of the form "<uuid>.<mac>".
type TokenSigner struct {
	key *[32]byte
}

// NewTokenSigner derives the signing key from secret. An empty secret gets a
// random key, so tokens do not survive a restart.
func NewTokenSigner(secret string) *TokenSigner {
	if secret == "" {
		return &TokenSigner{key: cryptopasta.NewHMACKey()}
	}
	var key [32]byte
	copy(key[:], cryptopasta.Hash("form-token", []byte(secret)))
	return &TokenSigner{key: &key}
}

// Issue returns a fresh signed token.
func (s *TokenSigner) Issue() string {
	id := uuid.NewString()
	mac := cryptopasta.GenerateHMAC([]byte(id), s.key)
	return id + "." + base64.RawURLEncoding.EncodeToString(mac)
}

// Verify checks the signature and returns the form id part.
func (s *TokenSigner) Verify(token string) (string, error) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || id == "" {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidToken
	}
	mac, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidToken
	}
	if !cryptopasta.CheckHMAC([]byte(id), mac, s.key) {
		return "", ErrInvalidToken
	}
	return id, nil
}
