package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecrypt(t *testing.T) {
	encrypted, err := Encrypt(testKey, "operator-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, "v1:"))
	assert.NotContains(t, encrypted, testKey[2:])

	plaintext, err := Decrypt(encrypted, "operator-secret")
	require.NoError(t, err)
	assert.Equal(t, testKey, plaintext)
}

func TestEncrypt_SaltsEveryCiphertext(t *testing.T) {
	a, err := Encrypt(testKey, "operator-secret")
	require.NoError(t, err)
	b, err := Encrypt(testKey, "operator-secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_Failures(t *testing.T) {
	encrypted, err := Encrypt(testKey, "operator-secret")
	require.NoError(t, err)

	flipped := byte('0')
	if encrypted[len(encrypted)-1] == '0' {
		flipped = '1'
	}
	tampered := encrypted[:len(encrypted)-1] + string(flipped)

	tests := []struct {
		name   string
		input  string
		secret string
	}{
		{"wrong secret", encrypted, "another-secret"},
		{"missing prefix", strings.TrimPrefix(encrypted, "v1:"), "operator-secret"},
		{"not hex", "v1:zzzz", "operator-secret"},
		{"truncated", encrypted[:20], "operator-secret"},
		{"tampered", tampered, "operator-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.input, tt.secret)
			assert.Error(t, err)
		})
	}
}

func TestEncrypt_EmptySecret(t *testing.T) {
	_, err := Encrypt(testKey, "")
	assert.Error(t, err)
}
