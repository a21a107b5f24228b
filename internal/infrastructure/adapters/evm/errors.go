package evm

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum"
)

var (
	// ErrNoRelayerKey is returned by write calls when no key is loaded
	ErrNoRelayerKey = errors.New("relayer private key not configured")

	// ErrChainIDMismatch is returned when an RPC endpoint serves a different chain than configured
	ErrChainIDMismatch = errors.New("rpc endpoint chain id mismatch")

	// ErrNoRPCURL is returned for a chain without an endpoint
	ErrNoRPCURL = errors.New("no rpc url configured")
)

// isCallerError reports errors that say nothing about endpoint health.
// They must not count against the circuit breaker.
func isCallerError(err error) bool {
	if err == nil || errors.Is(err, ethereum.NotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "insufficient funds") ||
		strings.Contains(msg, "nonce too low") ||
		strings.Contains(msg, "already known")
}
