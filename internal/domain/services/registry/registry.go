// Package registry maps ENSIP-11 coin types to the chains the relayer can submit to.
package registry

import (
	"fmt"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
)

// Registry is an immutable lookup table shared by all submitters.
// It is safe for concurrent use because nothing mutates it after New returns.
type Registry struct {
	ordered    []entities.ChainConfig
	byCoinType map[uint64]int
	byChainID  map[uint64]int
}

// New builds a registry. Coin types are derived from chain ids when left zero.
// Duplicate chain ids or coin types are rejected so both lookups stay injective.
func New(chains []entities.ChainConfig) (*Registry, error) {
	r := &Registry{
		ordered:    make([]entities.ChainConfig, 0, len(chains)),
		byCoinType: make(map[uint64]int, len(chains)),
		byChainID:  make(map[uint64]int, len(chains)),
	}

	for _, c := range chains {
		if c.ChainID == 0 {
			return nil, fmt.Errorf("chain %q has no chain id", c.Name)
		}
		if c.CoinType == 0 {
			c.CoinType = ChainIDToCoinType(c.ChainID)
		}
		if derived, ok := CoinTypeToChainID(c.CoinType); !ok || derived != c.ChainID {
			return nil, fmt.Errorf("chain %q: coin type %d does not derive from chain id %d", c.Name, c.CoinType, c.ChainID)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("Chain %d", c.ChainID)
		}
		if _, dup := r.byChainID[c.ChainID]; dup {
			return nil, fmt.Errorf("duplicate chain id %d", c.ChainID)
		}
		if _, dup := r.byCoinType[c.CoinType]; dup {
			return nil, fmt.Errorf("duplicate coin type %d", c.CoinType)
		}

		idx := len(r.ordered)
		r.ordered = append(r.ordered, c)
		r.byChainID[c.ChainID] = idx
		r.byCoinType[c.CoinType] = idx
	}

	return r, nil
}

// LookupByCoinType returns the chain for a coin type. Absence is an expected outcome.
func (r *Registry) LookupByCoinType(coinType uint64) (entities.ChainConfig, bool) {
	idx, ok := r.byCoinType[coinType]
	if !ok {
		return entities.ChainConfig{}, false
	}
	return r.ordered[idx], true
}

// LookupByChainID returns the chain with the given id
func (r *Registry) LookupByChainID(chainID uint64) (entities.ChainConfig, bool) {
	idx, ok := r.byChainID[chainID]
	if !ok {
		return entities.ChainConfig{}, false
	}
	return r.ordered[idx], true
}

// IsSupported reports whether a coin type resolves to a registered chain
func (r *Registry) IsSupported(coinType uint64) bool {
	_, ok := r.byCoinType[coinType]
	return ok
}

// AllChains returns the chains of a partition in registration order
func (r *Registry) AllChains(partition entities.NetworkPartition) []entities.ChainConfig {
	out := make([]entities.ChainConfig, 0, len(r.ordered))
	for _, c := range r.ordered {
		if partition.Includes(c.IsTestnet) {
			out = append(out, c)
		}
	}
	return out
}

// Unsupported returns the coin types that do not resolve, in input order
func (r *Registry) Unsupported(coinTypes []uint64) []uint64 {
	var out []uint64
	for _, ct := range coinTypes {
		if !r.IsSupported(ct) {
			out = append(out, ct)
		}
	}
	return out
}

// SupportedCoinTypes lists every chain name and coin type
func (r *Registry) SupportedCoinTypes() []entities.SupportedCoinType {
	out := make([]entities.SupportedCoinType, len(r.ordered))
	for i, c := range r.ordered {
		out[i] = entities.SupportedCoinType{ChainName: c.Name, CoinType: c.CoinType}
	}
	return out
}

// Len returns the number of registered chains
func (r *Registry) Len() int {
	return len(r.ordered)
}
