// Package secrets provides the encrypt-at-rest capability used for provider
// credentials. Tokens are sealed before they touch the user store and opened
// only at point of use.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the secretbox key length in bytes.
const KeySize = 32

const nonceSize = 24

var (
	ErrInvalidKey    = errors.New("sealing key must be 32 bytes")
	ErrOpenFailed    = errors.New("failed to open sealed secret")
	ErrInvalidSealed = errors.New("sealed value is malformed")
)

// Sealer seals credentials for storage and opens them for use.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SecretboxSealer implements Sealer with nacl/secretbox. The sealed form is
// base64(nonce || ciphertext).
type SecretboxSealer struct {
	key [KeySize]byte
}

// NewSecretboxSealer creates a Sealer from a 32-byte key.
func NewSecretboxSealer(key []byte) (*SecretboxSealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	s := &SecretboxSealer{}
	copy(s.key[:], key)
	return s, nil
}

func (s *SecretboxSealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *SecretboxSealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrInvalidSealed
	}
	if len(raw) < nonceSize {
		return "", ErrInvalidSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrOpenFailed
	}
	return string(plaintext), nil
}

// PlainSealer passes values through unchanged. Used in development when no
// sealing key is configured, mirroring stores that only seal when a secret
// key is present.
type PlainSealer struct{}

func (PlainSealer) Seal(plaintext string) (string, error) { return plaintext, nil }

func (PlainSealer) Open(sealed string) (string, error) { return sealed, nil }

var (
	_ Sealer = (*SecretboxSealer)(nil)
	_ Sealer = PlainSealer{}
)
