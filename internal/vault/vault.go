// Package vault provides encryption, decryption, masking and deterministic
// lookup hashing for card numbers. The ciphertext key and the lookup key are
// independent: leaking the lookup key never weakens the confidentiality of the
// reversible ciphertext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const gcmIVLength = 12

// Vault encrypts, decrypts and masks card numbers and derives a deterministic
// non-reversible lookup key for them.
type Vault interface {
	Encrypt(number string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Mask(number string) string
	LookupKey(number string) string
}

type aesVault struct {
	key       []byte
	lookupKey []byte
}

// New creates a Vault backed by AES-GCM. key must be 16, 24 or 32 bytes.
func New(key, lookupKey string) (Vault, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24 or 32 bytes, got %d", len(key))
	}
	if lookupKey == "" {
		return nil, fmt.Errorf("lookup key must not be empty")
	}
	return &aesVault{key: []byte(key), lookupKey: []byte(lookupKey)}, nil
}

// Encrypt encrypts a card number with AES-GCM. The random IV is prepended to
// the ciphertext and the result is base64-encoded.
func (v *aesVault) Encrypt(number string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	iv := make([]byte, gcmIVLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(iv, iv, []byte(number), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (v *aesVault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < gcmIVLength {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	plain, err := gcm.Open(nil, raw[:gcmIVLength], raw[gcmIVLength:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}

// Mask returns the display form of a card number: the last 4 digits with the
// rest replaced by asterisk groups.
func (v *aesVault) Mask(number string) string {
	number = Normalize(number)
	if len(number) < 4 {
		return "****"
	}
	return "**** **** **** " + number[len(number)-4:]
}

// LookupKey returns the deterministic HMAC-SHA256 of the normalized number,
// hex-encoded. Equal numbers always produce equal keys, so owner-scoped
// duplicate checks and lookups are a single indexed query.
func (v *aesVault) LookupKey(number string) string {
	h := hmac.New(sha256.New, v.lookupKey)
	h.Write([]byte(Normalize(number)))
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize strips spaces and dashes from a card number.
func Normalize(number string) string {
	return strings.ReplaceAll(strings.ReplaceAll(number, " ", ""), "-", "")
}
