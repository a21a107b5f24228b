package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		code  string
	}{
		{"validation", ValidationError(CodeSignatureExpired, "signatureExpiry", "Signature has expired"), IsInvalidInput, CodeSignatureExpired},
		{"configuration", ConfigurationError("Relayer private key not configured"), IsConfiguration, CodeRelayerNotReady},
		{"conflict", ConflictError("signature", "already in flight"), IsConflict, CodeConflict},
		{"rate limit", RateLimitError("address", 60), IsRateLimit, CodeRateLimit},
		{"unavailable", ServiceUnavailableError("redis", errors.New("dial")), IsServiceUnavailable, CodeServiceUnavailable},
		{"not found", NotFoundError("CHAIN"), IsNotFound, "CHAIN_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.Equal(t, tt.code, GetErrorCode(wrapped))
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidationError(CodeUnsupportedCoins, "coinTypes", "Unsupported coin types: 1, 2").
		WithDetails(map[string]interface{}{"unsupportedCoinTypes": []uint64{1, 2}})

	assert.Equal(t, "Unsupported coin types: 1, 2", err.Error())
	details := GetErrorDetails(err)
	assert.Equal(t, "coinTypes", details["field"])
	assert.Equal(t, []uint64{1, 2}, details["unsupportedCoinTypes"])
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(errors.New("plain")))
}
