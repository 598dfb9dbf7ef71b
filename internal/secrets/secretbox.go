// Package secrets seals storefront credentials at rest with NaCl secretbox.
//
// The key is derived as SHA-256 of the configured passphrase. A sealed value
// is base64(nonce || box) so it fits a text column.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	// ErrShortKey is returned by NewBox for passphrases under 16 bytes.
	ErrShortKey = errors.New("secrets: passphrase must be at least 16 bytes")
	// ErrMalformed is returned when a sealed value cannot be decoded or
	// fails authentication.
	ErrMalformed = errors.New("secrets: malformed or tampered value")
)

// Box seals and opens short secrets with a fixed key.
type Box struct {
	key  [32]byte
	rand io.Reader
}

// NewBox derives the key from passphrase.
func NewBox(passphrase string) (*Box, error) {
	if len(passphrase) < 16 {
		return nil, ErrShortKey
	}
	return &Box{key: sha256.Sum256([]byte(passphrase)), rand: rand.Reader}, nil
}

// Seal encrypts plain. Each call uses a fresh random nonce.
func (b *Box) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(b.rand, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrMalformed
	}
	return string(plain), nil
}
