// Package secrets encrypts and decrypts single configuration secrets with
// AES-256-GCM, keyed by a process-wide key. The identity-provider client
// secret never leaves this package in plaintext except through Decrypt.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/vitatrack/auth-server/internal/errors"
)

// gcmTagSize is the GCM authentication tag length in bytes. The tag is
// stored as a separate column, so it is split off the ciphertext on seal
// and re-appended on open.
const gcmTagSize = 16

// SealedSecret is the at-rest form of an encrypted secret. All three
// fields are hex-encoded and must always be written together.
type SealedSecret struct {
	Ciphertext string
	Nonce      string
	Tag        string
}

// IsZero reports whether no secret is present.
func (s SealedSecret) IsZero() bool {
	return s.Ciphertext == "" && s.Nonce == "" && s.Tag == ""
}

// Codec performs authenticated symmetric encryption with a fixed key.
// It is stateless and safe for concurrent use.
type Codec struct {
	key []byte
}

// NewCodec returns a codec for the given 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("[secrets NewCodec] key must be 32 bytes, got %d: %w", len(key), errors.ErrCrypto)
	}
	c := &Codec{key: make([]byte, len(key))}
	copy(c.key, key)
	return c, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *Codec) Encrypt(plaintext string) (SealedSecret, error) {
	aead, err := c.aead()
	if err != nil {
		return SealedSecret{}, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return SealedSecret{}, fmt.Errorf("[Codec.Encrypt] nonce generation: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	return SealedSecret{
		Ciphertext: hex.EncodeToString(ciphertext),
		Nonce:      hex.EncodeToString(nonce),
		Tag:        hex.EncodeToString(tag),
	}, nil
}

// Decrypt opens a sealed secret. Tag verification failure or malformed
// input fails with ErrCrypto; a wrong key never yields a plausible-looking
// wrong plaintext.
func (c *Codec) Decrypt(sealed SealedSecret) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	ciphertext, err := hex.DecodeString(sealed.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("[Codec.Decrypt] malformed ciphertext: %w", errors.ErrCrypto)
	}
	nonce, err := hex.DecodeString(sealed.Nonce)
	if err != nil {
		return "", fmt.Errorf("[Codec.Decrypt] malformed nonce: %w", errors.ErrCrypto)
	}
	tag, err := hex.DecodeString(sealed.Tag)
	if err != nil {
		return "", fmt.Errorf("[Codec.Decrypt] malformed tag: %w", errors.ErrCrypto)
	}
	if len(nonce) != aead.NonceSize() || len(tag) != gcmTagSize {
		return "", fmt.Errorf("[Codec.Decrypt] malformed input: %w", errors.ErrCrypto)
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("[Codec.Decrypt] authentication failed: %w", errors.ErrCrypto)
	}
	return string(plaintext), nil
}

func (c *Codec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("[Codec] aes.NewCipher: %w", errors.ErrCrypto)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("[Codec] cipher.NewGCM: %w", errors.ErrCrypto)
	}
	return aead, nil
}
