package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NetworkPartition selects mainnet chains, testnet chains or both
type NetworkPartition string

const (
	PartitionMainnet NetworkPartition = "mainnet"
	PartitionTestnet NetworkPartition = "testnet"
	PartitionAll     NetworkPartition = "all"
)

// IsValid checks if the partition is known
func (p NetworkPartition) IsValid() bool {
	switch p {
	case PartitionMainnet, PartitionTestnet, PartitionAll:
		return true
	}
	return false
}

// Includes reports whether a chain with the given testnet flag belongs to the partition
func (p NetworkPartition) Includes(isTestnet bool) bool {
	switch p {
	case PartitionMainnet:
		return !isTestnet
	case PartitionTestnet:
		return isTestnet
	default:
		return true
	}
}

// ChainConfig is one supported chain. Entries are built once at startup and never mutated.
type ChainConfig struct {
	ChainID   uint64
	CoinType  uint64
	Name      string
	Slug      string
	IsTestnet bool
	RPCURL    string
	// RegistrarAddress overrides the partition default when non-zero
	RegistrarAddress    common.Address
	ConfirmationTimeout time.Duration
}

// Partition returns the partition the chain belongs to
func (c ChainConfig) Partition() NetworkPartition {
	if c.IsTestnet {
		return PartitionTestnet
	}
	return PartitionMainnet
}

// Summary is the public view served by GET /api/chains
func (c ChainConfig) Summary() ChainSummary {
	return ChainSummary{
		ChainID:   c.ChainID,
		ChainName: c.Name,
		CoinType:  c.CoinType,
		IsTestnet: c.IsTestnet,
	}
}

// ChainSummary describes a supported chain to clients
type ChainSummary struct {
	ChainID   uint64 `json:"chainId"`
	ChainName string `json:"chainName"`
	CoinType  uint64 `json:"coinType"`
	IsTestnet bool   `json:"isTestnet"`
}

// ChainsResponse wraps the chain list
type ChainsResponse struct {
	Chains []ChainSummary `json:"chains"`
}

// SupportedCoinType is echoed back when a request names unsupported coin types
type SupportedCoinType struct {
	ChainName string `json:"chainName"`
	CoinType  uint64 `json:"coinType"`
}
