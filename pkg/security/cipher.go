package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// EncryptedPrefix marks values produced by FieldCipher.
const EncryptedPrefix = "enc:v1:"

var (
	// ErrMalformedCiphertext reports a value that is not an encrypted field.
	ErrMalformedCiphertext = errors.New("security: malformed ciphertext")
	// ErrDecrypt reports a ciphertext that failed authentication.
	ErrDecrypt = errors.New("security: unable to decrypt value")
)

// Cipher enciphers field values at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	// Decrypt returns an AuthorizationError when actor lacks the admin
	// capability, before any decryption is attempted.
	Decrypt(ciphertext string, actor Actor) (string, error)
}

// FieldCipher implements Cipher with XChaCha20-Poly1305 under a key derived
// from a master secret.
type FieldCipher struct {
	aead       cipher.AEAD
	capability string
	random     io.Reader
}

// CipherOption configures FieldCipher.
type CipherOption func(*FieldCipher)

// WithDecryptCapability overrides AdminCapability for Decrypt.
func WithDecryptCapability(capability string) CipherOption {
	return func(c *FieldCipher) {
		if capability != "" {
			c.capability = capability
		}
	}
}

// WithRandom overrides the nonce source.
func WithRandom(r io.Reader) CipherOption {
	return func(c *FieldCipher) {
		if r != nil {
			c.random = r
		}
	}
}

// NewFieldCipher derives the field key from secret using HKDF-SHA256.
func NewFieldCipher(secret []byte, options ...CipherOption) (*FieldCipher, error) {
	if len(secret) < 16 {
		return nil, errors.New("security: encryption secret must be at least 16 bytes")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, []byte("formengine-field-salt"), []byte("formengine field encryption v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("security: init cipher: %w", err)
	}
	c := &FieldCipher{aead: aead, capability: AdminCapability, random: rand.Reader}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return "", fmt.Errorf("security: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(EncryptedPrefix))
	return EncryptedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *FieldCipher) Decrypt(ciphertext string, actor Actor) (string, error) {
	if err := actor.Require(c.capability); err != nil {
		return "", err
	}
	if !IsEncrypted(ciphertext) {
		return "", ErrMalformedCiphertext
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, EncryptedPrefix))
	if err != nil || len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, []byte(EncryptedPrefix))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// IsEncrypted reports whether value carries the encrypted prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}
