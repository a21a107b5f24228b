// Package registrar holds the L2 reverse registrar contract interface shared by
// the transaction builder and the signed message codec.
package registrar

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultAddress is the CREATE3 deployment shared by every supported L2
const DefaultAddress = "0x0000000000D8e504002cC26E3Ec46D81971C1664"

const (
	MethodSetNameForAddrWithSignature = "setNameForAddrWithSignature"
	MethodCoinType                    = "coinType"
)

// ABIJSON covers the two registrar functions the relayer touches
const ABIJSON = `[
	{
		"inputs": [
			{"name": "addr", "type": "address"},
			{"name": "name", "type": "string"},
			{"name": "coinTypes", "type": "uint256[]"},
			{"name": "signatureExpiry", "type": "uint256"},
			{"name": "signature", "type": "bytes"}
		],
		"name": "setNameForAddrWithSignature",
		"outputs": [{"name": "", "type": "bytes32"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "coinType",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	parseOnce sync.Once
	parsed    abi.ABI
	parseErr  error
)

// ABI returns the parsed registrar ABI
func ABI() (abi.ABI, error) {
	parseOnce.Do(func() {
		parsed, parseErr = abi.JSON(strings.NewReader(ABIJSON))
	})
	return parsed, parseErr
}

// MustABI panics if the embedded ABI cannot be parsed
func MustABI() abi.ABI {
	a, err := ABI()
	if err != nil {
		panic(fmt.Sprintf("registrar abi: %v", err))
	}
	return a
}

// Selector returns the 4-byte selector of setNameForAddrWithSignature
func Selector() []byte {
	return MustABI().Methods[MethodSetNameForAddrWithSignature].ID
}

// CoinTypesToBig converts coin types to the uint256[] argument form
func CoinTypesToBig(coinTypes []uint64) []*big.Int {
	out := make([]*big.Int, len(coinTypes))
	for i, ct := range coinTypes {
		out[i] = new(big.Int).SetUint64(ct)
	}
	return out
}

// PackSetNameForAddrWithSignature encodes the full calldata for a reverse record update
func PackSetNameForAddrWithSignature(addr common.Address, name string, coinTypes []uint64, expiry uint64, signature []byte) ([]byte, error) {
	a, err := ABI()
	if err != nil {
		return nil, err
	}
	return a.Pack(MethodSetNameForAddrWithSignature,
		addr,
		name,
		CoinTypesToBig(coinTypes),
		new(big.Int).SetUint64(expiry),
		signature,
	)
}

// ParseAddress validates and parses a registrar address, falling back to DefaultAddress when empty
func ParseAddress(s string) (common.Address, error) {
	if strings.TrimSpace(s) == "" {
		return common.HexToAddress(DefaultAddress), nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid registrar address %q", s)
	}
	return common.HexToAddress(s), nil
}
