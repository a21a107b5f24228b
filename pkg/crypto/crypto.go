package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// formatPrefix versions the ciphertext layout: prefix ++ hex(salt ++ nonce ++ sealed)
	formatPrefix = "v1:"
	saltSize     = 16
	keyInfo      = "ens-relayer/private-key/v1"
)

// ErrMalformedCiphertext is returned for input that is not produced by Encrypt
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// deriveKey stretches the operator secret into an AES-256 key bound to salt
func deriveKey(secret string, salt []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), salt, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt encrypts data using AES-GCM under a key derived from secret
func Encrypt(data, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("encryption key is empty")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to create salt: %w", err)
	}

	key, err := deriveKey(secret, salt)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to create nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(data), nil)

	return formatPrefix + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt
func Decrypt(encrypted, secret string) (string, error) {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(encrypted), formatPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %s prefix", ErrMalformedCiphertext, formatPrefix)
	}

	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if len(raw) < saltSize {
		return "", ErrMalformedCiphertext
	}

	key, err := deriveKey(secret, raw[:saltSize])
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	body := raw[saltSize:]
	if len(body) < gcm.NonceSize()+gcm.Overhead() {
		return "", ErrMalformedCiphertext
	}
	nonce, sealed := body[:gcm.NonceSize()], body[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
