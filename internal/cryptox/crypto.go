// Package cryptox implements the authenticated encryption applied to the
// serialized room log before it leaves the machine. The construction is
// AES-256-GCM with a fresh random nonce per envelope and a key derived once
// from a configured secret.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/kotobachat/kotoba/internal/common"
)

// NonceSize is the GCM nonce length in bytes. The nonce is prepended to the
// ciphertext, so an envelope is nonce || ciphertext || tag.
const NonceSize = 12

// DeriveKey stretches a secret and salt into a 32-byte AES key using
// argon2id. Same inputs always produce the same key.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// Codec seals and opens backup envelopes. The key lives in process memory
// for the process lifetime; it is derived exactly once, in NewCodec.
type Codec struct {
	aead cipher.AEAD
}

func NewCodec(secret, salt []byte) (*Codec, error) {
	block, err := aes.NewCipher(DeriveKey(secret, salt))
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext into an envelope. Every call draws a fresh random
// nonce; a nonce must never repeat for the same key.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens an envelope produced by Encrypt. A malformed, truncated, or
// tampered envelope fails with common.ErrIntegrity; callers treat that the
// same way as a missing backup.
func (c *Codec) Decrypt(envelope []byte) ([]byte, error) {
	if len(envelope) < NonceSize {
		return nil, common.ErrIntegrity
	}
	nonce, ciphertext := envelope[:NonceSize], envelope[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrIntegrity
	}
	return plaintext, nil
}
