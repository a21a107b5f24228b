package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// FlexUint decodes from a JSON number or a decimal/0x-hex string.
// Browser clients holding bigint values often serialise them as strings.
type FlexUint uint64

func (f *FlexUint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}

	base := 10
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		raw, base = raw[2:], 16
	}
	v, err := strconv.ParseUint(raw, base, 64)
	if err != nil {
		return fmt.Errorf("invalid unsigned integer %s", string(data))
	}
	*f = FlexUint(v)
	return nil
}

// SetReverseBody is the raw POST /api/set-reverse payload
type SetReverseBody struct {
	Addr            string     `json:"addr" validate:"required,eth_addr"`
	Name            string     `json:"name" validate:"required"`
	CoinTypes       []FlexUint `json:"coinTypes" validate:"required"`
	SignatureExpiry FlexUint   `json:"signatureExpiry" validate:"required"`
	Signature       string     `json:"signature" validate:"required"`
}

// CoinTypeValues returns the coin types as plain integers
func (b SetReverseBody) CoinTypeValues() []uint64 {
	out := make([]uint64, len(b.CoinTypes))
	for i, ct := range b.CoinTypes {
		out[i] = uint64(ct)
	}
	return out
}

// ReverseSetRequest is a validated request. It is created once per user action and never modified.
type ReverseSetRequest struct {
	TargetAddress   common.Address
	Name            string
	CoinTypes       []uint64
	SignatureExpiry uint64
	// Signature is forwarded verbatim to every registrar call
	Signature []byte
}

// RegistrarCall is the argument set for one setNameForAddrWithSignature transaction
type RegistrarCall struct {
	Registrar       common.Address
	Addr            common.Address
	Name            string
	CoinTypes       []uint64
	SignatureExpiry uint64
	Signature       []byte
}

// ChainStatus is the per-chain lifecycle state
type ChainStatus string

const (
	ChainStatusPending   ChainStatus = "pending"
	ChainStatusConfirmed ChainStatus = "confirmed"
	ChainStatusFailed    ChainStatus = "failed"
)

var validChainTransitions = map[ChainStatus][]ChainStatus{
	ChainStatusPending:   {ChainStatusConfirmed, ChainStatusFailed},
	ChainStatusConfirmed: {},
	ChainStatusFailed:    {},
}

// CanTransitionTo checks if transition to the new status is allowed
func (s ChainStatus) CanTransitionTo(next ChainStatus) bool {
	for _, allowed := range validChainTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for confirmed and failed
func (s ChainStatus) IsTerminal() bool {
	return s == ChainStatusConfirmed || s == ChainStatusFailed
}

// ChainResult is the outcome of one chain's submission
type ChainResult struct {
	ChainID         uint64      `json:"chainId"`
	ChainName       string      `json:"chainName"`
	CoinType        uint64      `json:"coinType"`
	TransactionHash string      `json:"transactionHash,omitempty"`
	Status          ChainStatus `json:"status"`
	Error           string      `json:"error,omitempty"`
}

// AggregateResponse is the body of a successful POST /api/set-reverse
type AggregateResponse struct {
	Success bool          `json:"success"`
	Results []ChainResult `json:"results"`
}

// SignatureMessageBody asks the relayer to build the digest a wallet must sign
type SignatureMessageBody struct {
	Addr            string     `json:"addr" validate:"required,eth_addr"`
	Name            string     `json:"name" validate:"required"`
	CoinTypes       []FlexUint `json:"coinTypes" validate:"required,min=1"`
	SignatureExpiry FlexUint   `json:"signatureExpiry"`
}

// SignatureMessage describes what the user's wallet signs
type SignatureMessage struct {
	Registrar       string   `json:"registrar"`
	Addr            string   `json:"addr"`
	Name            string   `json:"name"`
	CoinTypes       []uint64 `json:"coinTypes"`
	SignatureExpiry uint64   `json:"signatureExpiry"`
	// MessageHash is keccak256 of the packed message, signed via personal_sign
	MessageHash string `json:"messageHash"`
	// SignableHash is MessageHash wrapped with the EIP-191 prefix
	SignableHash string `json:"signableHash"`
}
